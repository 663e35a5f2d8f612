// Package input reads key events from a raw-mode terminal.
package input

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/groutine"
	"github.com/srg/blepilot/internal/keymap"
	"golang.org/x/term"
)

// ErrQuit is returned by Run when the user asked to quit.
var ErrQuit = errors.New("quit requested")

// Terminals report key presses only, repeating them while a key is held.
// Reader turns that into press and release events: the first byte of a key is
// a press, further bytes within the hold timeout are repeats, and a key that
// stops repeating for longer than the hold timeout is released.
type Reader struct {
	src    io.Reader
	hold   time.Duration
	events *Ring[keymap.Event]
	logger *logrus.Logger

	mu   sync.Mutex
	held map[keymap.Code]time.Time // release deadlines
	now  func() time.Time
}

// NewReader creates a reader over src. hold is the release timeout.
func NewReader(src io.Reader, hold time.Duration, logger *logrus.Logger) *Reader {
	if logger == nil {
		logger = logrus.New()
	}
	if hold <= 0 {
		hold = 600 * time.Millisecond
	}
	return &Reader{
		src:    src,
		hold:   hold,
		events: NewRing[keymap.Event](64),
		logger: logger,
		held:   make(map[keymap.Code]time.Time),
		now:    time.Now,
	}
}

// Events delivers key events. The channel is closed when Run returns.
func (r *Reader) Events() <-chan keymap.Event {
	return r.events.C()
}

// Run reads until ctx is done, the source ends or the user quits.
func (r *Reader) Run(ctx context.Context) error {
	defer r.events.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sweepDone := make(chan struct{})
	groutine.Go(ctx, "input-release-sweeper", func(ctx context.Context) {
		defer close(sweepDone)
		r.sweep(ctx)
	})

	type chunk struct {
		data []byte
		err  error
	}
	chunks := make(chan chunk)
	groutine.Go(ctx, "input-reader", func(ctx context.Context) {
		buf := make([]byte, 64)
		for {
			n, err := r.src.Read(buf)
			c := chunk{data: append([]byte(nil), buf[:n]...), err: err}
			select {
			case chunks <- c:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	})

	defer func() {
		cancel()
		<-sweepDone
	}()

	var pending []byte
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c := <-chunks:
			if len(c.data) > 0 {
				keys, quit, rest := Decode(append(pending, c.data...))
				pending = rest
				for _, k := range keys {
					r.key(k)
				}
				if quit {
					return ErrQuit
				}
			}
			if errors.Is(c.err, io.EOF) {
				return nil
			}
			if c.err != nil {
				return c.err
			}
		}
	}
}

func (r *Reader) key(code keymap.Code) {
	r.mu.Lock()
	_, repeat := r.held[code]
	r.held[code] = r.now().Add(r.hold)
	r.mu.Unlock()

	if r.events.Send(keymap.Event{Code: code, Pressed: true, Repeat: repeat}) {
		r.logger.Warn("Input queue full, dropped oldest key event")
	}
}

// releaseExpired emits a release for every key whose hold deadline passed.
func (r *Reader) releaseExpired() {
	now := r.now()
	var released []keymap.Code

	r.mu.Lock()
	for code, deadline := range r.held {
		if !now.Before(deadline) {
			delete(r.held, code)
			released = append(released, code)
		}
	}
	r.mu.Unlock()

	for _, code := range released {
		r.events.Send(keymap.Event{Code: code})
	}
}

func (r *Reader) sweep(ctx context.Context) {
	t := time.NewTicker(r.hold / 4)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			r.releaseExpired()
		}
	}
}

// MakeRaw puts the terminal on f into raw mode and returns a function that restores it.
func MakeRaw(f *os.File) (restore func(), err error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		return nil, errors.New("stdin is not a terminal")
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, old) }, nil
}
