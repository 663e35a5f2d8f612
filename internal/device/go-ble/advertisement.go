package goble

import (
	"github.com/go-ble/ble"
	"github.com/srg/blepilot/internal/device"
)

// BLEAdvertisement wraps ble.Advertisement to implement device.Advertisement interface
type BLEAdvertisement struct {
	adv ble.Advertisement
}

// NewBLEAdvertisement creates a new BLEAdvertisement wrapper
func NewBLEAdvertisement(adv ble.Advertisement) device.Advertisement {
	return &BLEAdvertisement{adv: adv}
}

func (a *BLEAdvertisement) LocalName() string { return a.adv.LocalName() }
func (a *BLEAdvertisement) Connectable() bool { return a.adv.Connectable() }
func (a *BLEAdvertisement) RSSI() int         { return a.adv.RSSI() }
func (a *BLEAdvertisement) Addr() string      { return a.adv.Addr().String() }

// Services returns advertised service UUIDs, including overflow-area ones, normalized.
func (a *BLEAdvertisement) Services() []string {
	result := make([]string, 0, len(a.adv.Services())+len(a.adv.OverflowService()))
	for _, svc := range a.adv.Services() {
		result = append(result, device.NormalizeUUID(svc.String()))
	}
	for _, svc := range a.adv.OverflowService() {
		result = append(result, device.NormalizeUUID(svc.String()))
	}
	return result
}
