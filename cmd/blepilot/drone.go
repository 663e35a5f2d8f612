package main

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blepilot/internal/control"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/dispatcher"
	"github.com/srg/blepilot/internal/keymap"
	"github.com/srg/blepilot/internal/protocol"
	"github.com/srg/blepilot/internal/session"
)

var droneCmd = &cobra.Command{
	Use:   "drone",
	Short: "Pilot a minidrone with the keyboard",
	Long: `Connect to a minidrone (name prefix "Travis") and pilot it with the keyboard.

T takes off, Enter lands and F flips. While flying, W/S climb and descend,
A/D turn, the arrow keys move and Space hovers. A piloting frame is sent
on every tick while the drone is flying.`,
	Args: cobra.NoArgs,
	RunE: runDrone,
}

func runDrone(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, session.Drone)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	central, err := a.openCentral()
	if err != nil {
		return err
	}
	p, err := newDronePilot(a, central)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return p.run(ctx, a, os.Stdin)
}

// notificationLog keeps the latest value per notification characteristic.
type notificationLog struct {
	mu     sync.Mutex
	last   string
	values map[string]string
}

func (n *notificationLog) record(uuid string, data []byte) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.values == nil {
		n.values = make(map[string]string)
	}
	n.last = uuid
	n.values[uuid] = protocol.NewFrame(data...).String()
}

func (n *notificationLog) String() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.last == "" {
		return "none"
	}
	return fmt.Sprintf("%s: %s", device.ShortenUUID(n.last), n.values[n.last])
}

func newDronePilot(a *app, central device.Central) (*pilot, error) {
	state := control.NewState(control.DroneAxes...)
	seq := &protocol.Sequence{}
	notifications := &notificationLog{}
	p := &pilot{}

	sess, err := newPilotSession(a, central, p, nil, func(uuid string, data []byte) {
		notifications.record(uuid, data)
		p.invalidate()
	})
	if err != nil {
		return nil, err
	}
	p.sess = sess

	opts := a.dispatcherOptions(p)
	opts.Sequenced = true
	opts.Sequence = seq
	p.disp, err = dispatcher.New(sess, func(n uint8) protocol.Frame {
		return protocol.EncodeDrone(state.Snapshot(), n)
	}, opts, a.logger)
	if err != nil {
		return nil, err
	}

	command := func(name string, build dispatcher.Encoder, after func()) func() {
		return func() {
			p.console.Background("drone-"+name, func(ctx context.Context) {
				if err := p.disp.Send(ctx, build); err != nil {
					a.logger.WithFields(logrus.Fields{
						"command": name,
						"error":   err,
					}).Warn("Drone command failed")
					p.console.setMessage("ERROR: %s: %s", name, FormatUserError(err))
					return
				}
				p.console.setMessage("%s sent", name)
				if after != nil {
					after()
				}
			})
		}
	}

	actions := keymap.DroneActions{
		TakeOff: command("take off", protocol.DroneTakeOff, p.disp.Arm),
		Land: func() {
			p.disp.Disarm()
			state.Stop()
			command("land", protocol.DroneLand, nil)()
		},
		Flip: command("flip", protocol.DroneFlip, nil),
	}
	keys := keymap.Drone(state, actions, a.logger)

	a.newConsole(p, keys, consoleOptions{
		View: func() []string {
			return []string{
				fmt.Sprintf("flight:   %s", dispatcherStateLabel(p.disp.State(), "flying", "landed")),
				fmt.Sprintf("controls: %s", state.Snapshot()),
				fmt.Sprintf("seq:      %d", seq.Peek()),
				fmt.Sprintf("notify:   %s", notifications),
			}
		},
	})
	return p, nil
}
