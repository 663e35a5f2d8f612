package dispatcher

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/control"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/protocol"
	"github.com/stretchr/testify/suite"
)

type manualTicker struct {
	c       chan time.Time
	stopped chan struct{}
	once    sync.Once
}

func newManualTicker() *manualTicker {
	return &manualTicker{c: make(chan time.Time), stopped: make(chan struct{})}
}

func (t *manualTicker) C() <-chan time.Time { return t.c }
func (t *manualTicker) Stop()               { t.once.Do(func() { close(t.stopped) }) }

// recordingWriter captures frames; gate, when set, blocks each write until released.
type recordingWriter struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
	gate   chan struct{}
	inside chan struct{}
}

func (w *recordingWriter) Write(_ context.Context, data []byte) error {
	if w.gate != nil {
		w.inside <- struct{}{}
		<-w.gate
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.frames = append(w.frames, append([]byte(nil), data...))
	return nil
}

func (w *recordingWriter) written() [][]byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][]byte(nil), w.frames...)
}

// busyWriter reports itself busy while busy is set, like a session whose
// previous write outlived the write timeout.
type busyWriter struct {
	*recordingWriter
	busy atomic.Bool
}

func (w *busyWriter) Busy() bool { return w.busy.Load() }

type DispatcherTestSuite struct {
	suite.Suite

	logger  *logrus.Logger
	writer  *recordingWriter
	state   *control.State
	tickers chan *manualTicker
}

func TestDispatcherTestSuite(t *testing.T) {
	suite.Run(t, new(DispatcherTestSuite))
}

func (s *DispatcherTestSuite) SetupTest() {
	s.logger = logrus.New()
	s.logger.SetLevel(logrus.DebugLevel)
	s.writer = &recordingWriter{}
	s.state = control.NewState(control.DroneAxes...)
	s.tickers = make(chan *manualTicker, 10)
}

func (s *DispatcherTestSuite) options(sequenced bool) *Options {
	opts := DefaultOptions()
	opts.Sequenced = sequenced
	opts.NewTicker = func(time.Duration) Ticker {
		t := newManualTicker()
		s.tickers <- t
		return t
	}
	return opts
}

func (s *DispatcherTestSuite) carDispatcher() *Dispatcher {
	opts := s.options(false)
	opts.Initial = protocol.EncodeCar(s.state.Snapshot())
	d, err := New(s.writer, func(uint8) protocol.Frame {
		return protocol.EncodeCar(s.state.Snapshot())
	}, opts, s.logger)
	s.Require().NoError(err)
	return d
}

func (s *DispatcherTestSuite) droneDispatcher(seq *protocol.Sequence) *Dispatcher {
	opts := s.options(true)
	opts.Sequence = seq
	d, err := New(s.writer, func(seq uint8) protocol.Frame {
		return protocol.EncodeDrone(s.state.Snapshot(), seq)
	}, opts, s.logger)
	s.Require().NoError(err)
	return d
}

func handled(st Stats) uint64 {
	return st.Sent + st.Failed + st.Unchanged + st.Skipped
}

// tick delivers one tick and returns once its outcome, including any write, is settled.
func (s *DispatcherTestSuite) tick(d *Dispatcher, t *manualTicker) {
	before := handled(d.Stats())
	t.c <- time.Now()
	s.Require().Eventually(func() bool { return handled(d.Stats()) > before }, time.Second, time.Millisecond)
	d.Wait()
}

func (s *DispatcherTestSuite) TestChangeOnlySource_SendsOnlyOnChange() {
	// GOAL: Verify unchanged control state across ticks issues at most one write
	//
	// TEST SCENARIO: Idle car (initial frame) → no write; forward → one write; same state → no write

	d := s.carDispatcher()
	d.Arm()
	t := <-s.tickers

	s.tick(d, t)
	s.Empty(s.writer.written(), "idle state equal to the initial frame MUST not be sent")

	s.state.Set(control.Forward, true)
	s.tick(d, t)
	s.tick(d, t)
	s.tick(d, t)

	s.Equal([][]byte{{1}}, s.writer.written(), "unchanged state MUST be written once")
	s.Equal(uint64(1), d.Stats().Sent)
	s.Equal(uint64(3), d.Stats().Unchanged)

	s.state.Set(control.Left, true)
	s.tick(d, t)
	s.Equal([][]byte{{1}, {5}}, s.writer.written())
	d.Disarm()
}

func (s *DispatcherTestSuite) TestSequencedSource_SendsEveryTick() {
	// GOAL: Verify the drone sends on every tick with a fresh sequence number
	//
	// TEST SCENARIO: Three ticks with unchanged idle state → three frames with seq 0, 1, 2

	d := s.droneDispatcher(nil)
	d.Arm()
	t := <-s.tickers

	s.tick(d, t)
	s.tick(d, t)
	s.tick(d, t)
	d.Disarm()

	frames := s.writer.written()
	s.Require().Len(frames, 3)
	for i, f := range frames {
		s.Equal(byte(i), f[1], "frame %d MUST carry sequence %d", i, i)
		s.Equal(byte(0), f[6], "idle frame MUST have motion flag 0")
	}
}

func (s *DispatcherTestSuite) TestBusyTickIsSkipped() {
	// GOAL: Verify a tick overlapping an unresolved write is skipped without consuming a sequence number
	//
	// TEST SCENARIO: First write blocks → second tick skipped → after release the next frame uses seq 1

	s.writer.gate = make(chan struct{})
	s.writer.inside = make(chan struct{}, 4)
	seq := &protocol.Sequence{}

	d := s.droneDispatcher(seq)
	d.Arm()
	t := <-s.tickers

	t.c <- time.Now()
	<-s.writer.inside

	t.c <- time.Now()
	s.Require().Eventually(func() bool { return d.Stats().Skipped == 1 }, time.Second, time.Millisecond)
	s.Equal(uint8(1), seq.Peek(), "skipped tick MUST not consume a sequence number")

	s.writer.gate <- struct{}{}
	d.Wait()

	go func() { <-s.writer.inside; s.writer.gate <- struct{}{} }()
	s.tick(d, t)
	d.Disarm()

	frames := s.writer.written()
	s.Require().Len(frames, 2)
	s.Equal(byte(0), frames[0][1])
	s.Equal(byte(1), frames[1][1])
}

func (s *DispatcherTestSuite) TestWriteInFlightDoesNotConsumeSequence() {
	// GOAL: Verify a write rejected as in flight by the session neither consumes a sequence number nor counts as a failure
	//
	// TEST SCENARIO: Writer answers ErrWriteInFlight for three ticks → seq stays 0, three skips; then accepted → frame carries seq 0

	s.writer.err = device.ErrWriteInFlight
	seq := &protocol.Sequence{}
	d := s.droneDispatcher(seq)
	d.Arm()
	t := <-s.tickers

	s.tick(d, t)
	s.tick(d, t)
	s.tick(d, t)

	s.Equal(uint8(0), seq.Peek(), "rejected writes MUST hand their sequence number back")
	st := d.Stats()
	s.Equal(uint64(3), st.Skipped, "in-flight rejections MUST be counted as skipped ticks")
	s.Equal(uint64(0), st.Failed)
	s.Equal(uint64(0), st.Sent)

	s.writer.mu.Lock()
	s.writer.err = nil
	s.writer.mu.Unlock()
	s.tick(d, t)
	d.Disarm()

	frames := s.writer.written()
	s.Require().Len(frames, 1)
	s.Equal(byte(0), frames[0][1], "first accepted frame MUST carry the first sequence number")
}

func (s *DispatcherTestSuite) TestBusyWriterSkipsTick() {
	// GOAL: Verify a writer reporting an unresolved write makes the tick skip before encoding
	//
	// TEST SCENARIO: Writer busy → tick skipped, nothing written, seq untouched; writer idle → frame with seq 0

	w := &busyWriter{recordingWriter: s.writer}
	w.busy.Store(true)
	seq := &protocol.Sequence{}

	opts := s.options(true)
	opts.Sequence = seq
	d, err := New(w, func(n uint8) protocol.Frame {
		return protocol.EncodeDrone(s.state.Snapshot(), n)
	}, opts, s.logger)
	s.Require().NoError(err)
	d.Arm()
	t := <-s.tickers

	s.tick(d, t)
	s.tick(d, t)
	s.Empty(s.writer.written(), "a busy writer MUST NOT be asked to write")
	s.Equal(uint8(0), seq.Peek(), "skipped ticks MUST NOT consume sequence numbers")
	s.Equal(uint64(2), d.Stats().Skipped)

	w.busy.Store(false)
	s.tick(d, t)
	d.Disarm()

	frames := s.writer.written()
	s.Require().Len(frames, 1)
	s.Equal(byte(0), frames[0][1])
}

func (s *DispatcherTestSuite) TestFailedWriteDoesNotUpdateLastSent() {
	d := s.carDispatcher()
	d.Arm()
	t := <-s.tickers

	s.writer.err = &device.WriteError{UUID: "2a23", Err: errors.New("radio busy")}
	s.state.Set(control.Backward, true)
	s.tick(d, t)
	s.Equal(uint64(1), d.Stats().Failed)
	s.Equal([]byte{0}, d.LastSent().Bytes(), "failed write MUST not update the last transmitted frame")

	s.writer.mu.Lock()
	s.writer.err = nil
	s.writer.mu.Unlock()
	s.tick(d, t)
	s.Equal([][]byte{{2}}, s.writer.written(), "next tick MUST retry with current state")
	d.Disarm()
}

func (s *DispatcherTestSuite) TestToggleIsIdempotent() {
	// GOAL: Verify Idle→Armed→Idle→Armed leaves exactly one active timer
	//
	// TEST SCENARIO: Repeated Arm/Disarm/Toggle calls → timer count 0 or 1, old tickers stopped

	d := s.carDispatcher()
	s.Equal(Idle, d.State())

	d.Arm()
	d.Arm()
	s.Equal(1, d.ActiveTimers())
	s.Len(s.tickers, 1, "re-arming MUST not create a second timer")

	s.Equal(Idle, d.Toggle())
	d.Disarm()
	s.Equal(0, d.ActiveTimers())
	first := <-s.tickers
	s.Require().Eventually(func() bool {
		select {
		case <-first.stopped:
			return true
		default:
			return false
		}
	}, time.Second, time.Millisecond, "disarm MUST stop the timer")

	s.Equal(Armed, d.Toggle())
	s.Equal(Armed, d.State())
	s.Equal(1, d.ActiveTimers())
	s.Len(s.tickers, 1)
	d.Disarm()
}

func (s *DispatcherTestSuite) TestSendUsesSharedSequence() {
	seq := &protocol.Sequence{}
	d := s.droneDispatcher(seq)
	d.Arm()
	t := <-s.tickers

	s.tick(d, t)
	s.Require().NoError(d.Send(context.Background(), protocol.DroneTakeOff))
	s.tick(d, t)
	d.Disarm()

	frames := s.writer.written()
	s.Require().Len(frames, 3)
	s.Equal([]byte{4, 1, 2, 0, 1, 0}, frames[1])
	s.Equal(byte(2), frames[2][1], "periodic frames MUST continue after the one-shot sequence")
}

func (s *DispatcherTestSuite) TestSendHonoursContext() {
	s.writer.gate = make(chan struct{})
	s.writer.inside = make(chan struct{}, 1)
	d := s.droneDispatcher(nil)
	d.Arm()
	t := <-s.tickers

	t.c <- time.Now()
	<-s.writer.inside

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	s.ErrorIs(d.Send(ctx, protocol.DroneLand), context.DeadlineExceeded)

	d.Disarm()
	s.writer.gate <- struct{}{}
	d.Wait()
}

func (s *DispatcherTestSuite) TestNewValidatesArguments() {
	_, err := New(nil, func(uint8) protocol.Frame { return protocol.Frame{} }, nil, nil)
	s.Error(err)

	opts := DefaultOptions()
	opts.Interval = 0
	_, err = New(s.writer, func(uint8) protocol.Frame { return protocol.Frame{} }, opts, nil)
	s.ErrorContains(err, "must be positive")
}
