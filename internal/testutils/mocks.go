//go:build test

package testutils

import (
	"context"
	"sync"

	"github.com/srg/blepilot/internal/device"
	"github.com/stretchr/testify/mock"
)

// MockCentral is a testify mock of device.Central.
type MockCentral struct {
	mock.Mock
}

func (m *MockCentral) Scan(ctx context.Context, allowDup bool, handler func(device.Advertisement)) error {
	return m.Called(ctx, allowDup, handler).Error(0)
}

func (m *MockCentral) Dial(ctx context.Context, address string) (device.Peripheral, error) {
	args := m.Called(ctx, address)
	p, _ := args.Get(0).(device.Peripheral)
	return p, args.Error(1)
}

// Advertise makes Scan deliver the given advertisements and then return ctx.Err().
func (m *MockCentral) Advertise(advs ...device.Advertisement) *mock.Call {
	return m.On("Scan", mock.Anything, mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		handler := args.Get(2).(func(device.Advertisement))
		for _, adv := range advs {
			handler(adv)
		}
	})
}

// MockPeripheral is a testify mock of device.Peripheral. Drop simulates a
// peripheral-initiated disconnect.
type MockPeripheral struct {
	mock.Mock

	address      string
	once         sync.Once
	disconnected chan struct{}
}

func NewMockPeripheral(address string) *MockPeripheral {
	return &MockPeripheral{address: address, disconnected: make(chan struct{})}
}

func (m *MockPeripheral) Address() string {
	return m.address
}

func (m *MockPeripheral) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockPeripheral) Characteristic(service, uuid string) (device.Characteristic, error) {
	args := m.Called(service, uuid)
	c, _ := args.Get(0).(device.Characteristic)
	return c, args.Error(1)
}

func (m *MockPeripheral) Disconnected() <-chan struct{} {
	return m.disconnected
}

func (m *MockPeripheral) Disconnect() error {
	return m.Called().Error(0)
}

// Drop closes the Disconnected channel.
func (m *MockPeripheral) Drop() {
	m.once.Do(func() { close(m.disconnected) })
}

// MockCharacteristic is a testify mock of device.Characteristic.
type MockCharacteristic struct {
	mock.Mock

	UUIDValue string
	Props     device.Properties
}

func NewMockCharacteristic(uuid string, props device.Properties) *MockCharacteristic {
	return &MockCharacteristic{UUIDValue: device.NormalizeUUID(uuid), Props: props}
}

func (m *MockCharacteristic) UUID() string {
	return m.UUIDValue
}

func (m *MockCharacteristic) Properties() device.Properties {
	return m.Props
}

func (m *MockCharacteristic) Read() ([]byte, error) {
	args := m.Called()
	data, _ := args.Get(0).([]byte)
	return data, args.Error(1)
}

func (m *MockCharacteristic) Write(data []byte, withResponse bool) error {
	return m.Called(data, withResponse).Error(0)
}

func (m *MockCharacteristic) Subscribe(handler func(data []byte)) error {
	return m.Called(handler).Error(0)
}

// Advertisement is a static device.Advertisement.
type Advertisement struct {
	Name        string
	Address     string
	ServiceList []string
	Strength    int
	NotConnect  bool
}

func (a Advertisement) LocalName() string  { return a.Name }
func (a Advertisement) Services() []string { return a.ServiceList }
func (a Advertisement) RSSI() int          { return a.Strength }
func (a Advertisement) Addr() string       { return a.Address }
func (a Advertisement) Connectable() bool  { return !a.NotConnect }
