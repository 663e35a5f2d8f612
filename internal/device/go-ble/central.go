package goble

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/device"
)

// hostDevice is the subset of ble.Device used by a central
type hostDevice interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, a ble.Addr) (ble.Client, error)
}

// Central implements device.Central on top of a go-ble host device
type Central struct {
	dev    hostDevice
	logger *logrus.Logger
}

// NewCentral opens the platform BLE adapter through DeviceFactory.
func NewCentral(logger *logrus.Logger) (*Central, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, NormalizeError(fmt.Errorf("failed to create BLE device: %w", err))
	}
	return newCentral(dev, logger), nil
}

func newCentral(dev hostDevice, logger *logrus.Logger) *Central {
	if logger == nil {
		logger = logrus.New()
	}
	return &Central{dev: dev, logger: logger}
}

// Scan wraps the raw ble.Device.Scan to convert ble.Advertisement to the device.Advertisement
func (c *Central) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	bleHandler := func(adv ble.Advertisement) {
		handler(NewBLEAdvertisement(adv))
	}
	if err := c.dev.Scan(ctx, allowDup, bleHandler); err != nil {
		return NormalizeError(err)
	}
	return nil
}

// Dial connects to the peripheral at address.
func (c *Central) Dial(ctx context.Context, address string) (device.Peripheral, error) {
	if strings.TrimSpace(address) == "" {
		return nil, fmt.Errorf("device address is empty")
	}

	c.logger.WithField("address", address).Debug("Dialing BLE device...")
	client, err := c.dev.Dial(ctx, ble.NewAddr(address))
	if err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": address,
			"error":   err,
		}).Error("Failed to dial BLE device")
		return nil, &device.ConnectionError{
			State: device.ConnectFailed,
			Msg:   fmt.Sprintf("failed to connect to device with address %q", address),
			Err:   NormalizeError(err),
		}
	}

	return newPeripheral(address, client, c.logger), nil
}
