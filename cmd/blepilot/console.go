package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/groutine"
	"github.com/srg/blepilot/internal/input"
	"github.com/srg/blepilot/internal/keymap"
	"github.com/srg/blepilot/internal/session"
)

const clearScreenSequence = "\033[H\033[2J"

var (
	titleColor        = color.New(color.Bold)
	connectedColor    = color.New(color.FgGreen)
	connectingColor   = color.New(color.FgYellow)
	disconnectedColor = color.New(color.FgRed)
	helpColor         = color.New(color.Faint)
	errorColor        = color.New(color.FgRed, color.Bold)
)

func sessionStateLabel(st session.State) string {
	switch st {
	case session.Connected:
		return connectedColor.Sprint(st.String())
	case session.Connecting:
		return connectingColor.Sprint(st.String())
	default:
		return disconnectedColor.Sprint(st.String())
	}
}

type consoleOptions struct {
	// View returns the device-specific lines between the header and the help.
	View func() []string
	// AfterConnect runs after every successful connect, e.g. to read device state.
	AfterConnect func(ctx context.Context) error
	// Hold is the key release timeout.
	Hold time.Duration
}

// console drives one session interactively: key events go to the keymap and
// the screen is redrawn on input, session and dispatcher changes.
type console struct {
	out    io.Writer
	sess   *session.Session
	keys   *keymap.Keymap
	opts   consoleOptions
	logger *logrus.Logger

	redraw *input.Ring[struct{}]
	tasks  groutine.Group

	mu      sync.Mutex
	ctx     context.Context
	message string

	reconnecting atomic.Bool
}

func newConsole(out io.Writer, sess *session.Session, keys *keymap.Keymap, opts consoleOptions, logger *logrus.Logger) *console {
	if logger == nil {
		logger = logrus.New()
	}
	c := &console{
		out:    out,
		sess:   sess,
		keys:   keys,
		opts:   opts,
		logger: logger,
		redraw: input.NewRing[struct{}](1),
		ctx:    context.Background(),
	}
	keys.BindTrigger("reconnect", c.reconnect, keymap.KeyC)
	return c
}

// Invalidate schedules a redraw. It never blocks.
func (c *console) Invalidate() {
	c.redraw.Send(struct{}{})
}

func (c *console) setMessage(format string, args ...any) {
	c.mu.Lock()
	c.message = fmt.Sprintf(format, args...)
	c.mu.Unlock()
	c.Invalidate()
}

func (c *console) Message() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.message
}

func (c *console) context() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ctx
}

// Connect runs the session connect pipeline followed by the after-connect hook.
func (c *console) Connect(ctx context.Context) error {
	if err := c.sess.Connect(ctx); err != nil {
		return err
	}
	if c.opts.AfterConnect != nil {
		return c.opts.AfterConnect(ctx)
	}
	return nil
}

// Background runs fn on a tracked goroutine bound to the console lifetime.
func (c *console) Background(name string, fn func(ctx context.Context)) {
	c.tasks.Go(c.context(), name, fn)
}

func (c *console) reconnect() {
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	c.setMessage("reconnecting...")
	c.Background("console-reconnect", func(ctx context.Context) {
		defer c.reconnecting.Store(false)
		if err := c.Connect(ctx); err != nil {
			c.logger.WithFields(logrus.Fields{
				"profile": c.sess.Profile().Name,
				"error":   err,
			}).Warn("Reconnect failed")
			c.setMessage("ERROR: %s", FormatUserError(err))
			return
		}
		c.setMessage("connected")
	})
}

// Run reads keys from in until the user quits, in ends or ctx is cancelled.
// Background tasks are waited for before it returns.
func (c *console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.ctx = ctx
	c.mu.Unlock()
	defer func() {
		cancel()
		c.tasks.Wait()
	}()

	reader := input.NewReader(in, c.opts.Hold, c.logger)
	readErr := make(chan error, 1)
	c.tasks.Go(ctx, "console-input", func(ctx context.Context) {
		readErr <- reader.Run(ctx)
	})

	c.render()
	events := reader.Events()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				err := <-readErr
				if err == nil || errors.Is(err, input.ErrQuit) {
					return nil
				}
				return err
			}
			c.logger.WithField("event", ev.String()).Trace("Key event")
			c.keys.Handle(ev)
			c.render()
		case <-c.redraw.C():
			c.render()
		}
	}
}

// Screen returns the lines of the current screen.
func (c *console) Screen() []string {
	profile := c.sess.Profile()
	header := fmt.Sprintf("%s  %s", titleColor.Sprint("blepilot "+profile.Name), sessionStateLabel(c.sess.State()))
	if name := c.sess.Name(); name != "" {
		header += "  " + name
	}
	if addr := c.sess.Address(); addr != "" {
		header += " (" + addr + ")"
	}

	lines := []string{header, ""}
	if c.opts.View != nil {
		lines = append(lines, c.opts.View()...)
		lines = append(lines, "")
	}
	lines = append(lines, helpColor.Sprint(c.keys.HelpText()+"  Q quit"))
	if msg := c.Message(); msg != "" {
		if strings.HasPrefix(msg, "ERROR:") {
			msg = errorColor.Sprint(msg)
		}
		lines = append(lines, msg)
	}
	return lines
}

func (c *console) render() {
	var b strings.Builder
	b.WriteString(clearScreenSequence)
	for _, l := range c.Screen() {
		b.WriteString(l)
		// raw mode needs an explicit carriage return
		b.WriteString("\r\n")
	}
	fmt.Fprint(c.out, b.String())
}
