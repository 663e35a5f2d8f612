// Package session owns the discovery, connection and write lifecycle of one peripheral.
package session

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
)

// State is the lifecycle state of a session.
type State int

const (
	Disconnected State = iota
	Connecting
	Connected
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrClosed is returned by operations on a closed session.
var ErrClosed = errors.New("session closed")

// Options configures a session
type Options struct {
	ConnectTimeout time.Duration
	WriteTimeout   time.Duration

	// OnStateChange is called after every lifecycle transition.
	OnStateChange func(State)
	// OnNotification receives values from the profile's notification characteristics.
	OnNotification func(uuid string, data []byte)
}

// DefaultOptions returns default session options
func DefaultOptions() *Options {
	return &Options{
		ConnectTimeout: 30 * time.Second,
		WriteTimeout:   2 * time.Second,
	}
}

// Session is the connection to one logical peripheral. It caches the address of
// the matched device so that later connects dial it directly.
// At most one write is outstanding at any time.
type Session struct {
	central device.Central
	profile Profile
	opts    *Options
	logger  *logrus.Logger

	mu         sync.Mutex
	state      State
	closed     bool
	address    string
	peripheral device.Peripheral
	char       device.Characteristic
	stop       chan struct{} // closed on explicit disconnect

	writing atomic.Bool
}

// New creates a disconnected session for profile.
func New(central device.Central, profile Profile, opts *Options, logger *logrus.Logger) (*Session, error) {
	if central == nil {
		return nil, fmt.Errorf("central is required")
	}
	if err := profile.Validate(); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Session{
		central: central,
		profile: profile,
		opts:    opts,
		logger:  logger,
		address: profile.Address,
	}, nil
}

func (s *Session) Profile() Profile {
	return s.profile
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Address returns the cached peripheral address, empty before the first match.
func (s *Session) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.address
}

// Name returns the connected peripheral's name.
func (s *Session) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peripheral == nil {
		return ""
	}
	return s.peripheral.Name()
}

func (s *Session) notifyState(st State) {
	if s.opts.OnStateChange != nil {
		s.opts.OnStateChange(st)
	}
}

func (s *Session) fields() logrus.Fields {
	return logrus.Fields{
		"profile": s.profile.Name,
		"address": s.Address(),
	}
}

// Connect discovers (or re-dials) the peripheral and resolves the command
// characteristic. Connecting an already connected session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch {
	case s.closed:
		s.mu.Unlock()
		return ErrClosed
	case s.state == Connected:
		s.mu.Unlock()
		return nil
	case s.state == Connecting:
		s.mu.Unlock()
		return &device.ConnectionError{State: device.AlreadyConnected, Msg: "connect already in progress"}
	}
	s.state = Connecting
	address := s.address
	s.mu.Unlock()
	s.notifyState(Connecting)

	if s.opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.ConnectTimeout)
		defer cancel()
	}

	p, char, err := s.open(ctx, address)
	if err != nil {
		s.mu.Lock()
		s.state = Disconnected
		if device.IsCharacteristicNotFound(err) {
			s.address = s.profile.Address
		}
		s.mu.Unlock()
		s.notifyState(Disconnected)
		return err
	}

	stop := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.state = Disconnected
		s.mu.Unlock()
		_ = p.Disconnect()
		s.notifyState(Disconnected)
		return ErrClosed
	}
	s.address = p.Address()
	s.peripheral = p
	s.char = char
	s.stop = stop
	s.state = Connected
	s.mu.Unlock()

	s.logger.WithFields(s.fields()).WithField("char_uuid", char.UUID()).Info("Session connected")
	s.notifyState(Connected)

	groutine.Go(context.Background(), "session-monitor-"+s.profile.Name, func(context.Context) {
		s.monitor(p, stop)
	})
	return nil
}

// open runs the connect pipeline: discover, dial, resolve, subscribe.
func (s *Session) open(ctx context.Context, address string) (device.Peripheral, device.Characteristic, error) {
	if address == "" {
		found, err := s.discover(ctx)
		if err != nil {
			return nil, nil, err
		}
		address = found
	} else {
		s.logger.WithFields(logrus.Fields{"profile": s.profile.Name, "address": address}).Debug("Reconnecting to cached address")
	}

	p, err := s.central.Dial(ctx, address)
	if err != nil {
		return nil, nil, err
	}

	char, err := p.Characteristic(s.profile.Service, s.profile.Characteristic)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"profile": s.profile.Name,
			"address": address,
			"error":   err,
		}).Error("Failed to resolve command characteristic")
		_ = p.Disconnect()
		return nil, nil, err
	}
	if !char.Properties().CanWrite() {
		_ = p.Disconnect()
		return nil, nil, fmt.Errorf("characteristic %s is not writable (%s): %w", char.UUID(), char.Properties(), device.ErrUnsupported)
	}

	s.subscribe(p)
	return p, char, nil
}

// discover scans until the first advertisement matching the profile filter.
func (s *Session) discover(ctx context.Context) (string, error) {
	scanCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu    sync.Mutex
		found string
	)
	s.logger.WithField("filter", s.profile.Filter.String()).Debug("Scanning for peripheral...")
	err := s.central.Scan(scanCtx, false, func(adv device.Advertisement) {
		if !s.profile.Filter.Matches(adv) {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if found != "" {
			return
		}
		found = adv.Addr()
		s.logger.WithFields(logrus.Fields{
			"address": adv.Addr(),
			"name":    adv.LocalName(),
			"rssi":    adv.RSSI(),
		}).Info("Found matching peripheral")
		cancel()
	})

	mu.Lock()
	addr := found
	mu.Unlock()
	if addr != "" {
		return addr, nil
	}
	if err == nil {
		err = ctx.Err()
	}
	return "", &device.DiscoveryError{Filter: s.profile.Filter, Err: err}
}

func (s *Session) subscribe(p device.Peripheral) {
	for _, uuid := range s.profile.Notify {
		c, err := p.Characteristic(s.profile.NotifyService, uuid)
		if err == nil {
			err = c.Subscribe(s.notificationHandler(device.NormalizeUUID(uuid)))
		}
		if err != nil {
			s.logger.WithFields(logrus.Fields{
				"profile":   s.profile.Name,
				"char_uuid": uuid,
				"error":     err,
			}).Warn("Failed to subscribe to notifications")
		}
	}
}

func (s *Session) notificationHandler(uuid string) func([]byte) {
	return func(data []byte) {
		s.logger.WithFields(logrus.Fields{
			"profile":   s.profile.Name,
			"char_uuid": uuid,
			"data":      fmt.Sprintf("% x", data),
		}).Debug("Notification received")
		if s.opts.OnNotification != nil {
			s.opts.OnNotification(uuid, data)
		}
	}
}

// monitor clears the handles when the peripheral drops the link.
func (s *Session) monitor(p device.Peripheral, stop <-chan struct{}) {
	select {
	case <-stop:
		return
	case <-p.Disconnected():
	}

	s.mu.Lock()
	if s.peripheral != p {
		s.mu.Unlock()
		return
	}
	s.peripheral = nil
	s.char = nil
	s.stop = nil
	s.state = Disconnected
	s.mu.Unlock()

	s.logger.WithFields(s.fields()).Warn("Peripheral disconnected")
	s.notifyState(Disconnected)
}

// Write sends data to the command characteristic. It fails immediately with
// device.ErrWriteInFlight while a previous write is unresolved. A write that
// outlives the write timeout keeps the session busy until it completes.
func (s *Session) Write(ctx context.Context, data []byte) error {
	s.mu.Lock()
	char := s.char
	s.mu.Unlock()
	if char == nil {
		return &device.ConnectionError{State: device.NotConnected, Msg: fmt.Sprintf("session %q", s.profile.Name)}
	}

	if !s.writing.CompareAndSwap(false, true) {
		return &device.ConnectionError{State: device.WriteInFlight, Msg: fmt.Sprintf("session %q", s.profile.Name)}
	}

	if s.opts.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.WriteTimeout)
		defer cancel()
	}

	payload := append([]byte(nil), data...)
	done := make(chan error, 1)
	groutine.Go(context.Background(), "session-write-"+s.profile.Name, func(context.Context) {
		err := char.Write(payload, s.profile.WithResponse)
		s.writing.Store(false)
		done <- err
	})

	select {
	case err := <-done:
		if err != nil {
			s.logger.WithFields(s.fields()).WithField("error", err).Debug("Write failed")
			return err
		}
		s.logger.WithFields(s.fields()).WithField("data", fmt.Sprintf("% x", payload)).Trace("Write completed")
		return nil
	case <-ctx.Done():
		return &device.WriteError{UUID: char.UUID(), Err: ctx.Err()}
	}
}

// Busy reports whether a write is outstanding.
func (s *Session) Busy() bool {
	return s.writing.Load()
}

// Read reads the current value of the command characteristic.
func (s *Session) Read(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	char := s.char
	s.mu.Unlock()
	if char == nil {
		return nil, &device.ConnectionError{State: device.NotConnected, Msg: fmt.Sprintf("session %q", s.profile.Name)}
	}
	return char.Read()
}

// Disconnect drops the link and the characteristic handle. The cached address
// is kept so the next Connect re-dials the same peripheral.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	p := s.peripheral
	if s.stop != nil {
		close(s.stop)
	}
	s.peripheral = nil
	s.char = nil
	s.stop = nil
	wasConnected := s.state != Disconnected
	s.state = Disconnected
	s.mu.Unlock()

	if wasConnected {
		s.notifyState(Disconnected)
	}
	if p == nil {
		return nil
	}
	return p.Disconnect()
}

// Close disconnects and forgets the cached address. A closed session cannot reconnect.
func (s *Session) Close() error {
	err := s.Disconnect()
	s.mu.Lock()
	s.closed = true
	s.address = ""
	s.mu.Unlock()
	return err
}
