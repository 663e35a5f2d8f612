// Package scanner lists nearby peripherals.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/device"
)

// EventType marks if the device was newly discovered or updated
type EventType int

const (
	EventNew EventType = iota
	EventUpdated
)

// Entry is what the scanner knows about one peripheral.
type Entry struct {
	Address     string    `json:"address"`
	Name        string    `json:"name"`
	RSSI        int       `json:"rssi"`
	Services    []string  `json:"services"`
	Connectable bool      `json:"connectable"`
	LastSeen    time.Time `json:"last_seen"`
	Seen        int       `json:"seen"`
}

type Event struct {
	Type  EventType
	Entry Entry
}

// Options configures scanning behavior
type Options struct {
	Duration time.Duration
	// Filter is applied when set; an empty filter lists every device.
	Filter  device.Filter
	OnEvent func(Event)
}

// DefaultOptions returns default scanning options
func DefaultOptions() *Options {
	return &Options{
		Duration: 10 * time.Second,
	}
}

// Scanner de-duplicates advertisements by address.
type Scanner struct {
	central device.Central
	logger  *logrus.Logger
	now     func() time.Time

	devices *hashmap.Map[string, *record]
}

type record struct {
	mu    sync.Mutex
	entry Entry
}

// New creates a scanner using central.
func New(central device.Central, logger *logrus.Logger) *Scanner {
	if logger == nil {
		logger = logrus.New()
	}
	return &Scanner{
		central: central,
		logger:  logger,
		now:     time.Now,
	}
}

// Scan listens for advertisements until the duration elapses or ctx is done and
// returns the devices seen, strongest signal first.
func (s *Scanner) Scan(ctx context.Context, opts *Options) ([]Entry, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	filtered := opts.Filter.NamePrefix != "" || len(opts.Filter.Services) > 0
	if filtered {
		if err := opts.Filter.Validate(); err != nil {
			return nil, err
		}
	}

	s.devices = hashmap.New[string, *record]()

	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	s.logger.WithField("duration", opts.Duration).Info("Starting BLE scan...")
	err := s.central.Scan(ctx, true, func(adv device.Advertisement) {
		if filtered && !opts.Filter.Matches(adv) {
			return
		}
		ev := s.handleAdvertisement(adv)
		if opts.OnEvent != nil {
			opts.OnEvent(ev)
		}
	})
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return s.entries(), err
		}
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	s.logger.WithField("device_count", s.devices.Len()).Info("BLE scan completed")
	return s.entries(), nil
}

// handleAdvertisement updates an existing record or adds a new one.
func (s *Scanner) handleAdvertisement(adv device.Advertisement) Event {
	rec, existing := s.devices.Get(adv.Addr())
	if !existing {
		rec, existing = s.devices.GetOrInsert(adv.Addr(), &record{})
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	e := &rec.entry
	e.Address = adv.Addr()
	if name := adv.LocalName(); name != "" {
		e.Name = name
	}
	if services := adv.Services(); len(services) > 0 {
		e.Services = mergeServices(e.Services, services)
	}
	e.RSSI = adv.RSSI()
	e.Connectable = adv.Connectable()
	e.LastSeen = s.now()
	e.Seen++

	if !existing {
		s.logger.WithFields(logrus.Fields{
			"device":  e.Name,
			"address": e.Address,
			"rssi":    e.RSSI,
		}).Info("Discovered new device")
		return Event{Type: EventNew, Entry: copyEntry(*e)}
	}
	return Event{Type: EventUpdated, Entry: copyEntry(*e)}
}

func mergeServices(have, adv []string) []string {
	out := append([]string(nil), have...)
	for _, s := range adv {
		n := device.NormalizeUUID(s)
		found := false
		for _, h := range out {
			if h == n {
				found = true
				break
			}
		}
		if !found && n != "" {
			out = append(out, n)
		}
	}
	return out
}

func copyEntry(e Entry) Entry {
	e.Services = append([]string(nil), e.Services...)
	return e
}

func (s *Scanner) entries() []Entry {
	out := make([]Entry, 0, s.devices.Len())
	s.devices.Range(func(_ string, rec *record) bool {
		rec.mu.Lock()
		out = append(out, copyEntry(rec.entry))
		rec.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].RSSI != out[j].RSSI {
			return out[i].RSSI > out[j].RSSI
		}
		return out[i].Address < out[j].Address
	})
	return out
}
