package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blepilot/internal/control"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/dispatcher"
	"github.com/srg/blepilot/internal/keymap"
	"github.com/srg/blepilot/internal/protocol"
	"github.com/srg/blepilot/internal/session"
)

var carCmd = &cobra.Command{
	Use:   "car",
	Short: "Drive a toy car with the keyboard",
	Long: `Connect to a toy car (name prefix "SED") and drive it with the keyboard.

Hold the arrow keys or WASD to drive, Space stops, Enter starts and stops
sending commands, C reconnects and Q quits. The current direction is sent
as a one-byte bitfield whenever it changes.`,
	Args: cobra.NoArgs,
	RunE: runCar,
}

var armedColor = color.New(color.FgGreen, color.Bold)

func dispatcherStateLabel(st dispatcher.State, armed, idle string) string {
	if st == dispatcher.Armed {
		return armedColor.Sprint(armed)
	}
	return idle
}

func runCar(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, session.Car)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	central, err := a.openCentral()
	if err != nil {
		return err
	}
	p, err := newCarPilot(a, central)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return p.run(ctx, a, os.Stdin)
}

func newCarPilot(a *app, central device.Central) (*pilot, error) {
	state := control.NewState(control.CarAxes...)
	p := &pilot{}

	sess, err := newPilotSession(a, central, p, func(st session.State) {
		// The car stops on disconnect; resend the current state after a reconnect.
		if st == session.Disconnected && p.disp != nil {
			p.disp.MarkSent(protocol.Frame{})
		}
	}, nil)
	if err != nil {
		return nil, err
	}
	p.sess = sess

	opts := a.dispatcherOptions(p)
	opts.Initial = protocol.EncodeCar(state.Snapshot())
	p.disp, err = dispatcher.New(sess, func(uint8) protocol.Frame {
		return protocol.EncodeCar(state.Snapshot())
	}, opts, a.logger)
	if err != nil {
		return nil, err
	}

	keys := keymap.Car(state, func() { p.disp.Toggle() }, a.logger)
	a.newConsole(p, keys, consoleOptions{
		View: func() []string {
			return []string{
				fmt.Sprintf("sending:  %s", dispatcherStateLabel(p.disp.State(), "on", "off")),
				fmt.Sprintf("controls: %s", state.Snapshot()),
				fmt.Sprintf("last:     %s", p.disp.LastSent()),
			}
		},
	})
	return p, nil
}
