package goble

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/device"
)

// Characteristic implements device.Characteristic for a resolved go-ble characteristic.
// Writes are sent as a single ATT operation: command frames are atomic and must never be chunked.
type Characteristic struct {
	uuid   string
	char   *ble.Characteristic
	client gattClient
	logger *logrus.Logger
}

func newCharacteristic(c *ble.Characteristic, client gattClient, logger *logrus.Logger) *Characteristic {
	return &Characteristic{
		uuid:   device.NormalizeUUID(c.UUID.String()),
		char:   c,
		client: client,
		logger: logger,
	}
}

func (c *Characteristic) UUID() string {
	return c.uuid
}

func (c *Characteristic) Properties() device.Properties {
	return device.Properties(c.char.Property)
}

// Read reads the current value of the characteristic from the device.
func (c *Characteristic) Read() ([]byte, error) {
	if c.char.Property&ble.CharRead == 0 {
		return nil, fmt.Errorf("characteristic %s does not support read: %w", c.uuid, device.ErrUnsupported)
	}
	data, err := c.client.ReadCharacteristic(c.char)
	if err != nil {
		return nil, fmt.Errorf("failed to read characteristic %s: %w", c.uuid, NormalizeError(err))
	}
	return data, nil
}

// Write writes data with or without response. Falls back to the mode the
// characteristic supports when the requested one is unavailable.
func (c *Characteristic) Write(data []byte, withResponse bool) error {
	props := c.Properties()
	if !props.CanWrite() {
		return fmt.Errorf("characteristic %s does not support write operations: %w", c.uuid, device.ErrUnsupported)
	}
	if withResponse && props&device.PropWrite == 0 {
		withResponse = false
	} else if !withResponse && props&device.PropWriteWithoutResponse == 0 {
		withResponse = true
	}

	if err := c.client.WriteCharacteristic(c.char, data, !withResponse); err != nil {
		return &device.WriteError{UUID: c.uuid, Err: NormalizeError(err)}
	}
	return nil
}

// Subscribe enables notifications (or indications when notify is unsupported)
// and routes every value to handler.
func (c *Characteristic) Subscribe(handler func(data []byte)) error {
	props := c.Properties()
	if !props.CanNotify() {
		return fmt.Errorf("characteristic %s does not support notifications: %w", c.uuid, device.ErrUnsupported)
	}

	if c.char.CCCD == nil {
		if _, err := c.client.DiscoverDescriptors(nil, c.char); err != nil {
			return fmt.Errorf("failed to discover descriptors of %s: %w", c.uuid, NormalizeError(err))
		}
	}

	indicate := props&device.PropNotify == 0
	err := c.client.Subscribe(c.char, indicate, func(data []byte) {
		handler(append([]byte(nil), data...))
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", c.uuid, NormalizeError(err))
	}

	c.logger.WithFields(logrus.Fields{
		"char_uuid": c.uuid,
		"indicate":  indicate,
	}).Info("Successfully subscribed to characteristic notifications")
	return nil
}
