package devicefactory

import (
	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/device/go-ble"
)

// NewCentral opens the host BLE adapter.
// This is a variable so that it can be overridden in tests.
var NewCentral = func(logger *logrus.Logger) (device.Central, error) {
	c, err := goble.NewCentral(logger)
	if err != nil {
		return nil, err
	}
	return c, nil
}
