package goble

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

type mockHostDevice struct {
	mock.Mock
}

func (m *mockHostDevice) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	args := m.Called(ctx, allowDup, h)
	return args.Error(0)
}

func (m *mockHostDevice) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	args := m.Called(ctx, a)
	client, _ := args.Get(0).(ble.Client)
	return client, args.Error(1)
}

type mockGattClient struct {
	mock.Mock
	disconnected chan struct{}
}

func newMockGattClient() *mockGattClient {
	return &mockGattClient{disconnected: make(chan struct{})}
}

func (m *mockGattClient) Name() string {
	return m.Called().String(0)
}

func (m *mockGattClient) DiscoverServices(filter []ble.UUID) ([]*ble.Service, error) {
	args := m.Called(filter)
	svcs, _ := args.Get(0).([]*ble.Service)
	return svcs, args.Error(1)
}

func (m *mockGattClient) DiscoverCharacteristics(filter []ble.UUID, s *ble.Service) ([]*ble.Characteristic, error) {
	args := m.Called(filter, s)
	chars, _ := args.Get(0).([]*ble.Characteristic)
	return chars, args.Error(1)
}

func (m *mockGattClient) DiscoverDescriptors(filter []ble.UUID, c *ble.Characteristic) ([]*ble.Descriptor, error) {
	args := m.Called(filter, c)
	descs, _ := args.Get(0).([]*ble.Descriptor)
	return descs, args.Error(1)
}

func (m *mockGattClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *mockGattClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *mockGattClient) Subscribe(c *ble.Characteristic, ind bool, h ble.NotificationHandler) error {
	return m.Called(c, ind, h).Error(0)
}

func (m *mockGattClient) CancelConnection() error {
	return m.Called().Error(0)
}

func (m *mockGattClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

type fakeBLEAdvertisement struct {
	name     string
	addr     string
	rssi     int
	services []ble.UUID
	overflow []ble.UUID
}

func (a *fakeBLEAdvertisement) LocalName() string              { return a.name }
func (a *fakeBLEAdvertisement) ManufacturerData() []byte       { return nil }
func (a *fakeBLEAdvertisement) ServiceData() []ble.ServiceData { return nil }
func (a *fakeBLEAdvertisement) Services() []ble.UUID           { return a.services }
func (a *fakeBLEAdvertisement) OverflowService() []ble.UUID    { return a.overflow }
func (a *fakeBLEAdvertisement) TxPowerLevel() int              { return 127 }
func (a *fakeBLEAdvertisement) Connectable() bool              { return true }
func (a *fakeBLEAdvertisement) SolicitedService() []ble.UUID   { return nil }
func (a *fakeBLEAdvertisement) RSSI() int                      { return a.rssi }
func (a *fakeBLEAdvertisement) Addr() ble.Addr                 { return ble.NewAddr(a.addr) }
