package goble

import (
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/device"
)

// gattClient is the subset of ble.Client used by a peripheral
type gattClient interface {
	Name() string
	DiscoverServices(filter []ble.UUID) ([]*ble.Service, error)
	DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error)
	DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error
	CancelConnection() error
	Disconnected() <-chan struct{}
}

// Peripheral implements device.Peripheral for a connected go-ble client
type Peripheral struct {
	address string
	client  gattClient
	logger  *logrus.Logger

	mu       sync.Mutex
	services []*ble.Service // discovered lazily, then cached
}

func newPeripheral(address string, client gattClient, logger *logrus.Logger) *Peripheral {
	return &Peripheral{
		address: address,
		client:  client,
		logger:  logger,
	}
}

func (p *Peripheral) Address() string {
	return p.address
}

func (p *Peripheral) Name() string {
	return p.client.Name()
}

func (p *Peripheral) Disconnected() <-chan struct{} {
	return p.client.Disconnected()
}

// Disconnect cancels the link; the peripheral cannot be reused afterwards.
func (p *Peripheral) Disconnect() error {
	p.mu.Lock()
	p.services = nil
	p.mu.Unlock()

	if err := p.client.CancelConnection(); err != nil {
		p.logger.WithFields(logrus.Fields{
			"address": p.address,
			"error":   err,
		}).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}
	p.logger.WithField("address", p.address).Info("BLE device disconnected successfully")
	return nil
}

// Characteristic resolves the primary service, then the characteristic within it.
// Both UUIDs are normalized for consistent lookup (lowercase, no dashes).
// Returns a NotFoundError if the service or characteristic is not found.
func (p *Peripheral) Characteristic(service, uuid string) (device.Characteristic, error) {
	normalizedServiceUUID := device.NormalizeUUID(service)
	normalizedCharUUID := device.NormalizeUUID(uuid)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.services == nil {
		p.logger.WithField("address", p.address).Debug("Discovering services...")
		services, err := p.client.DiscoverServices(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to discover services: %w", NormalizeError(err))
		}
		p.services = services
	}

	var svc *ble.Service
	for _, s := range p.services {
		if device.NormalizeUUID(s.UUID.String()) == normalizedServiceUUID {
			svc = s
			break
		}
	}
	if svc == nil {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{service}}
	}

	chars := svc.Characteristics
	if chars == nil {
		p.logger.WithField("service_uuid", normalizedServiceUUID).Debug("Discovering characteristics...")
		discovered, err := p.client.DiscoverCharacteristics(nil, svc)
		if err != nil {
			return nil, fmt.Errorf("failed to discover characteristics of service %s: %w", service, NormalizeError(err))
		}
		chars = discovered
	}

	for _, c := range chars {
		if device.NormalizeUUID(c.UUID.String()) == normalizedCharUUID {
			p.logger.WithFields(logrus.Fields{
				"service_uuid": normalizedServiceUUID,
				"char_uuid":    normalizedCharUUID,
				"properties":   device.Properties(c.Property).String(),
			}).Debug("Characteristic found")
			return newCharacteristic(c, p.client, p.logger), nil
		}
	}

	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{service, uuid}}
}
