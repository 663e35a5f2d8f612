package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/protocol"
	"github.com/srg/blepilot/internal/session"
)

var sendCmd = &cobra.Command{
	Use:   "send <profile> <data>",
	Short: "Write one raw command to a device",
	Long: `Connect to the device of a built-in profile, write one command to its
command characteristic and disconnect.

Data is a list of decimal bytes separated by commas or spaces, or hex with
--hex (spaces, colons and 0x prefixes are ignored).`,
	Example: `  blepilot send car 1
  blepilot send lamp --hex "57 0a 00 ff 0f"
  blepilot send drone "4,0,2,0,1,0"`,
	Args: cobra.ExactArgs(2),
	RunE: runSend,
}

var sendHex bool

func init() {
	sendCmd.Flags().BoolVar(&sendHex, "hex", false, "Parse data as hex")
}

func runSend(cmd *cobra.Command, args []string) error {
	frame, err := protocol.ParseFrame(args[1], sendHex)
	if err != nil {
		return fmt.Errorf("invalid data: %w", err)
	}
	a, err := newApp(cmd, args[0])
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	central, err := a.openCentral()
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return sendFrame(ctx, a, central, protocol.EncodeRaw(frame.Bytes()))
}

// sendFrame connects, writes frame once and closes the session.
func sendFrame(ctx context.Context, a *app, central device.Central, frame protocol.Frame) error {
	sess, err := session.New(central, a.profile, a.sessionOptions(), a.logger)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	if err := a.connectWithProgress(ctx, sess.Connect, sess); err != nil {
		return err
	}

	if err := sess.Write(ctx, frame.Bytes()); err != nil {
		if device.IsConnectionState(err, device.NotConnected) {
			return fmt.Errorf("%w: %v", ErrConnectionLost, err)
		}
		return err
	}

	target := sess.Address()
	if name := sess.Name(); name != "" {
		target = fmt.Sprintf("%s (%s)", name, target)
	}
	fmt.Fprintf(a.out, "Sent %d bytes to %s %s: %s\n", frame.Len(), a.profile.Name, target, frame)
	return nil
}
