package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/dispatcher"
	"github.com/srg/blepilot/internal/keymap"
	"github.com/srg/blepilot/internal/protocol"
	"github.com/srg/blepilot/internal/session"
)

var ledCmd = &cobra.Command{
	Use:   "led",
	Short: "Paint an 8x16 LED matrix board",
	Long: `Connect to an LED matrix board (service ffe0 by default), read the
pattern it currently shows and edit it from the keyboard.

Arrow keys move the cursor, Space toggles the LED under it, F flips the
board upside down, R rotates the view, X clears the board. Edits are sent
as a 16-byte frame on the next tick.`,
	Args: cobra.NoArgs,
	RunE: runLED,
}

var (
	ledOnColor  = color.New(color.FgRed, color.Bold)
	ledOffColor = color.New(color.Faint)
)

func runLED(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, session.LED)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	central, err := a.openCentral()
	if err != nil {
		return err
	}
	p, err := newLEDPilot(a, central)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()
	return p.run(ctx, a, os.Stdin)
}

// renderBoard draws the board in view orientation. The cursor cell is
// bracketed.
func renderBoard(b *protocol.Board) []string {
	grid := b.Grid()
	rows, cols := b.ViewSize()
	curRow, curCol := b.Cursor()

	lines := make([]string, 0, rows)
	for r := 0; r < rows; r++ {
		var sb strings.Builder
		for c := 0; c < cols; c++ {
			gr, gc := b.ToGrid(r, c)
			cell := ledOffColor.Sprint("·")
			if grid[gr][gc] {
				cell = ledOnColor.Sprint("●")
			}
			if r == curRow && c == curCol {
				sb.WriteString("[" + cell + "]")
			} else {
				sb.WriteString(" " + cell + " ")
			}
		}
		lines = append(lines, strings.TrimRight(sb.String(), " "))
	}
	return lines
}

// syncBoard reads the pattern the board shows and treats it as transmitted.
func syncBoard(ctx context.Context, sess *session.Session, board *protocol.Board, disp *dispatcher.Dispatcher, logger *logrus.Logger) error {
	data, err := sess.Read(ctx)
	if err != nil {
		return fmt.Errorf("failed to read board state: %w", err)
	}
	grid, err := protocol.DecodeMatrix(data)
	if err != nil {
		return fmt.Errorf("failed to decode board state: %w", err)
	}
	board.Load(grid)
	disp.MarkSent(protocol.EncodeMatrix(grid))
	logger.WithFields(logrus.Fields{
		"profile": sess.Profile().Name,
		"lit":     grid.Lit(),
	}).Debug("Board state loaded")
	return nil
}

func newLEDPilot(a *app, central device.Central) (*pilot, error) {
	board := protocol.NewBoard()
	p := &pilot{armOnConnect: true}

	sess, err := newPilotSession(a, central, p, nil, nil)
	if err != nil {
		return nil, err
	}
	p.sess = sess

	opts := a.dispatcherOptions(p)
	p.disp, err = dispatcher.New(sess, func(uint8) protocol.Frame {
		return protocol.EncodeMatrix(board.Grid())
	}, opts, a.logger)
	if err != nil {
		return nil, err
	}

	keys := keymap.LED(board, p.invalidate, a.logger)
	a.newConsole(p, keys, consoleOptions{
		View: func() []string {
			view := "normal"
			if board.Rotated() {
				view = "rotated"
			}
			row, col := board.Cursor()
			lines := renderBoard(board)
			return append(lines, "",
				fmt.Sprintf("cursor %d,%d  view %s  lit %d  last %s", row, col, view, board.Grid().Lit(), p.disp.LastSent()))
		},
		AfterConnect: func(ctx context.Context) error {
			if !sess.Profile().ReadOnConnect {
				return nil
			}
			// An unreadable board is edited from a blank grid.
			if err := syncBoard(ctx, sess, board, p.disp, a.logger); err != nil {
				a.logger.WithError(err).Warn("Board state unavailable")
			}
			return nil
		},
	})
	return p, nil
}
