package device

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// NotFoundError represents an error when a BLE resource is not found
type NotFoundError struct {
	Resource string   // "service", "characteristic"
	UUIDs    []string // One or more UUIDs (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// IsCharacteristicNotFound reports whether err means the target service or
// characteristic could not be resolved on a connected peripheral.
func IsCharacteristicNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// DiscoveryError is returned when no peripheral matching a filter was found
// before the scan ended.
type DiscoveryError struct {
	Filter Filter
	Err    error // cause: context deadline, cancellation or scan failure
}

func (e *DiscoveryError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("no device matching %s found", e.Filter)
	}
	return fmt.Sprintf("no device matching %s found: %v", e.Filter, e.Err)
}

func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	ConnectFailed    ConnectionState = "connect_failed"
	WriteInFlight    ConnectionState = "write_in_flight"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
	Err   error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := string(e.State)
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrConnectFailed    = &ConnectionError{State: ConnectFailed}
	ErrWriteInFlight    = &ConnectionError{State: WriteInFlight}
)

// WriteError reports a failed characteristic write. Writes are not retried.
type WriteError struct {
	UUID string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to characteristic %q failed: %v", e.UUID, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Adapter and platform errors
var (
	ErrBluetoothOff     = errors.New("bluetooth is turned off")
	ErrPermissionDenied = errors.New("bluetooth permission denied")
	ErrUnsupported      = errors.New("unsupported")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// ContainsIgnoreCase checks substring case-insensitively
func ContainsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Advertisement is the subset of advertising data used for discovery.
type Advertisement interface {
	LocalName() string
	Services() []string
	RSSI() int
	Addr() string
	Connectable() bool
}

// Central scans for and dials peripherals.
type Central interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
	Dial(ctx context.Context, address string) (Peripheral, error)
}

// Peripheral is a connected GATT server.
type Peripheral interface {
	Address() string
	Name() string
	// Characteristic resolves the primary service first, then the characteristic in it.
	Characteristic(service, uuid string) (Characteristic, error)
	// Disconnected is closed when the link drops.
	Disconnected() <-chan struct{}
	Disconnect() error
}

// Characteristic is a resolved GATT characteristic on a connected peripheral.
type Characteristic interface {
	UUID() string
	Properties() Properties
	Read() ([]byte, error)
	Write(data []byte, withResponse bool) error
	Subscribe(handler func(data []byte)) error
}

// Properties is the characteristic property bitmask as defined by GATT.
type Properties uint8

const (
	PropBroadcast            Properties = 0x01
	PropRead                 Properties = 0x02
	PropWriteWithoutResponse Properties = 0x04
	PropWrite                Properties = 0x08
	PropNotify               Properties = 0x10
	PropIndicate             Properties = 0x20
)

func (p Properties) CanWrite() bool {
	return p&(PropWrite|PropWriteWithoutResponse) != 0
}

func (p Properties) CanNotify() bool {
	return p&(PropNotify|PropIndicate) != 0
}

func (p Properties) String() string {
	names := []struct {
		flag Properties
		name string
	}{
		{PropBroadcast, "broadcast"},
		{PropRead, "read"},
		{PropWriteWithoutResponse, "write-without-response"},
		{PropWrite, "write"},
		{PropNotify, "notify"},
		{PropIndicate, "indicate"},
	}
	var parts []string
	for _, n := range names {
		if p&n.flag != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ",")
}
