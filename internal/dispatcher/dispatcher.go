// Package dispatcher periodically transmits the encoded control state of a vehicle.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/groutine"
	"github.com/srg/blepilot/internal/protocol"
)

// State of the dispatcher
type State int

const (
	Idle State = iota
	Armed
)

func (s State) String() string {
	if s == Armed {
		return "armed"
	}
	return "idle"
}

// Writer transmits one frame. session.Session implements it.
type Writer interface {
	Write(ctx context.Context, data []byte) error
}

// busyReporter is implemented by writers that know when a previous write is
// still unresolved, e.g. session.Session after a write timeout.
type busyReporter interface {
	Busy() bool
}

// Encoder builds the frame for the current control state. seq is only
// meaningful for sequenced sources.
type Encoder func(seq uint8) protocol.Frame

// Ticker is the tick source of an armed dispatcher.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	t *time.Ticker
}

func (t timeTicker) C() <-chan time.Time { return t.t.C }
func (t timeTicker) Stop()               { t.t.Stop() }

// NewTimeTicker returns a Ticker backed by time.Ticker.
func NewTimeTicker(d time.Duration) Ticker {
	return timeTicker{t: time.NewTicker(d)}
}

// Options configures a dispatcher
type Options struct {
	Interval time.Duration

	// Sequenced sources send every tick with a fresh sequence number;
	// other sources send only when the frame changed since the last successful write.
	Sequenced bool
	Sequence  *protocol.Sequence

	// Initial is treated as already transmitted.
	Initial protocol.Frame

	// OnSent is called after every successful transmission.
	OnSent func(protocol.Frame)

	NewTicker func(time.Duration) Ticker
}

// DefaultOptions returns default dispatcher options
func DefaultOptions() *Options {
	return &Options{
		Interval:  250 * time.Millisecond,
		NewTicker: NewTimeTicker,
	}
}

// Stats counts what the dispatcher did with its ticks.
type Stats struct {
	Ticks     uint64
	Sent      uint64
	Unchanged uint64
	Skipped   uint64
	Failed    uint64
}

// Dispatcher runs a fixed-interval loop while armed. At most one write is
// outstanding; a tick that finds a write in flight, in the dispatcher or in
// the writer, is skipped without consuming a sequence number.
type Dispatcher struct {
	w      Writer
	enc    Encoder
	opts   *Options
	seq    *protocol.Sequence
	logger *logrus.Logger

	mu       sync.Mutex
	state    State
	ticker   Ticker
	cancel   context.CancelFunc
	lastSent protocol.Frame

	busy   chan struct{} // one slot: the outstanding write
	writes groutine.Group
	timers atomic.Int32

	ticks, sent, unchanged, skipped, failed atomic.Uint64
}

// New creates an idle dispatcher.
func New(w Writer, enc Encoder, opts *Options, logger *logrus.Logger) (*Dispatcher, error) {
	if w == nil || enc == nil {
		return nil, fmt.Errorf("writer and encoder are required")
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Interval <= 0 {
		return nil, fmt.Errorf("tick interval must be positive, got %s", opts.Interval)
	}
	if opts.NewTicker == nil {
		opts.NewTicker = NewTimeTicker
	}
	if logger == nil {
		logger = logrus.New()
	}
	seq := opts.Sequence
	if seq == nil {
		seq = &protocol.Sequence{}
	}

	return &Dispatcher{
		w:        w,
		enc:      enc,
		opts:     opts,
		seq:      seq,
		logger:   logger,
		lastSent: opts.Initial,
		busy:     make(chan struct{}, 1),
	}, nil
}

func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// ActiveTimers returns the number of running tick sources (0 or 1).
func (d *Dispatcher) ActiveTimers() int {
	return int(d.timers.Load())
}

// Arm starts the tick loop. Arming an armed dispatcher is a no-op.
func (d *Dispatcher) Arm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Armed {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	ticker := d.opts.NewTicker(d.opts.Interval)
	d.ticker = ticker
	d.cancel = cancel
	d.state = Armed
	d.timers.Add(1)

	groutine.Go(ctx, "dispatcher-loop", func(ctx context.Context) {
		d.loop(ctx, ticker)
	})
	d.logger.WithField("interval", d.opts.Interval).Debug("Dispatcher armed")
}

// Disarm stops the tick loop. In-flight writes complete on their own.
// Disarming an idle dispatcher is a no-op.
func (d *Dispatcher) Disarm() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.state == Idle {
		return
	}

	d.cancel()
	d.ticker.Stop()
	d.cancel = nil
	d.ticker = nil
	d.state = Idle
	d.timers.Add(-1)
	d.logger.Debug("Dispatcher disarmed")
}

// Toggle arms an idle dispatcher and disarms an armed one. It returns the new state.
func (d *Dispatcher) Toggle() State {
	d.mu.Lock()
	armed := d.state == Armed
	d.mu.Unlock()

	if armed {
		d.Disarm()
		return Idle
	}
	d.Arm()
	return Armed
}

func (d *Dispatcher) loop(ctx context.Context, ticker Ticker) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			d.tick(ctx)
		}
	}
}

func (d *Dispatcher) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	d.ticks.Add(1)

	select {
	case d.busy <- struct{}{}:
	default:
		d.skipped.Add(1)
		d.logger.Debug("Tick skipped: write in flight")
		return
	}
	if br, ok := d.w.(busyReporter); ok && br.Busy() {
		<-d.busy
		d.skipped.Add(1)
		d.logger.Debug("Tick skipped: writer busy")
		return
	}

	var seq uint8
	if d.opts.Sequenced {
		seq = d.seq.Next()
	}
	frame := d.enc(seq)

	if !d.opts.Sequenced {
		d.mu.Lock()
		same := frame.Equal(d.lastSent)
		d.mu.Unlock()
		if same {
			d.unchanged.Add(1)
			<-d.busy
			return
		}
	}

	d.writes.Go(ctx, "dispatcher-write", func(context.Context) {
		defer func() { <-d.busy }()
		d.transmit(frame, seq)
	})
}

func (d *Dispatcher) transmit(frame protocol.Frame, seq uint8) {
	err := d.w.Write(context.Background(), frame.Bytes())
	if err != nil {
		fields := logrus.Fields{"frame": frame.String(), "error": err}
		if d.opts.Sequenced {
			fields["seq"] = seq
		}
		if errors.Is(err, device.ErrWriteInFlight) {
			// Nothing went on the wire; the busy slot is still held, so no
			// other frame has taken a number since.
			if d.opts.Sequenced {
				d.seq.Release(seq)
			}
			d.skipped.Add(1)
			d.logger.WithFields(fields).Debug("Write skipped: session busy")
			return
		}
		d.failed.Add(1)
		d.logger.WithFields(fields).Warn("Periodic write failed")
		return
	}

	d.mu.Lock()
	d.lastSent = frame
	d.mu.Unlock()
	d.sent.Add(1)

	if d.opts.OnSent != nil {
		d.opts.OnSent(frame)
	}
}

// Send transmits a one-shot frame built with the next sequence number,
// waiting for any outstanding periodic write first.
func (d *Dispatcher) Send(ctx context.Context, build Encoder) error {
	select {
	case d.busy <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-d.busy }()

	seq := d.seq.Next()
	frame := build(seq)
	if err := d.w.Write(ctx, frame.Bytes()); err != nil {
		if errors.Is(err, device.ErrWriteInFlight) {
			d.seq.Release(seq)
		}
		return err
	}
	d.logger.WithField("frame", frame.String()).Debug("One-shot command sent")
	if d.opts.OnSent != nil {
		d.opts.OnSent(frame)
	}
	return nil
}

// LastSent returns the last successfully transmitted periodic frame.
func (d *Dispatcher) LastSent() protocol.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastSent
}

// MarkSent records frame as transmitted, e.g. after reading the device state
// or reconnecting to a device that reset itself.
func (d *Dispatcher) MarkSent(frame protocol.Frame) {
	d.mu.Lock()
	d.lastSent = frame
	d.mu.Unlock()
}

// Wait blocks until every periodic write started so far has finished.
func (d *Dispatcher) Wait() {
	d.writes.Wait()
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		Ticks:     d.ticks.Load(),
		Sent:      d.sent.Load(),
		Unchanged: d.unchanged.Load(),
		Skipped:   d.skipped.Load(),
		Failed:    d.failed.Load(),
	}
}
