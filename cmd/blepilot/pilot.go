package main

import (
	"context"
	"io"
	"os"

	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/dispatcher"
	"github.com/srg/blepilot/internal/input"
	"github.com/srg/blepilot/internal/keymap"
	"github.com/srg/blepilot/internal/protocol"
	"github.com/srg/blepilot/internal/session"
)

// pilot is one interactive controller: the session, the dispatcher feeding
// it and the console driving both.
type pilot struct {
	sess    *session.Session
	disp    *dispatcher.Dispatcher
	console *console

	// armOnConnect arms the dispatcher once the first connect succeeded.
	armOnConnect bool
}

func (p *pilot) invalidate() {
	if p.console != nil {
		p.console.Invalidate()
	}
}

// newPilotSession creates the session with callbacks that reach back into p.
func newPilotSession(a *app, central device.Central, p *pilot, onState func(session.State), onNotify func(string, []byte)) (*session.Session, error) {
	opts := a.sessionOptions()
	opts.OnStateChange = func(st session.State) {
		if onState != nil {
			onState(st)
		}
		p.invalidate()
	}
	opts.OnNotification = onNotify
	return session.New(central, a.profile, opts, a.logger)
}

func (a *app) dispatcherOptions(p *pilot) *dispatcher.Options {
	opts := dispatcher.DefaultOptions()
	opts.Interval = a.cfg.TickInterval
	opts.OnSent = func(protocol.Frame) { p.invalidate() }
	return opts
}

func (a *app) newConsole(p *pilot, keys *keymap.Keymap, opts consoleOptions) {
	opts.Hold = a.cfg.HoldTimeout
	p.console = newConsole(a.out, p.sess, keys, opts, a.logger)
}

// shutdown stops the dispatcher, waits for its writes and closes the session.
func (p *pilot) shutdown() {
	p.disp.Disarm()
	p.disp.Wait()
	_ = p.sess.Close()
}

// run connects, switches in to raw mode when it is a terminal and hands
// control to the console until the user quits.
func (p *pilot) run(ctx context.Context, a *app, in io.Reader) error {
	defer p.shutdown()

	if err := a.connectWithProgress(ctx, p.console.Connect, p.sess); err != nil {
		return err
	}
	if p.armOnConnect {
		p.disp.Arm()
	}

	if f, ok := in.(*os.File); ok {
		restore, err := input.MakeRaw(f)
		if err != nil {
			a.logger.WithError(err).Debug("Raw terminal mode unavailable, reading line-buffered input")
		} else {
			defer restore()
		}
	}
	return p.console.Run(ctx, in)
}
