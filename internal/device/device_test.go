package device

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionError_IsComparesState(t *testing.T) {
	err := fmt.Errorf("session: %w", &ConnectionError{State: NotConnected, Msg: "characteristic not resolved"})

	assert.ErrorIs(t, err, ErrNotConnected)
	assert.NotErrorIs(t, err, ErrWriteInFlight)
	assert.True(t, IsConnectionState(err, NotConnected))
	assert.False(t, IsConnectionState(errors.New("other"), NotConnected))
}

func TestConnectionError_Message(t *testing.T) {
	cause := errors.New("le-connection-abort-by-local")
	err := &ConnectionError{State: ConnectFailed, Msg: "dial aa:bb", Err: cause}

	assert.Equal(t, "connect_failed: dial aa:bb: le-connection-abort-by-local", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "write_in_flight", ErrWriteInFlight.Error())
}

func TestNotFoundError_Message(t *testing.T) {
	svc := &NotFoundError{Resource: "service", UUIDs: []string{"181a"}}
	chr := &NotFoundError{Resource: "characteristic", UUIDs: []string{"181a", "2a23"}}

	assert.Equal(t, `service "181a" not found`, svc.Error())
	assert.Equal(t, `characteristic "2a23" not found in service "181a"`, chr.Error())
	assert.True(t, IsCharacteristicNotFound(fmt.Errorf("wrap: %w", chr)))
	assert.False(t, IsCharacteristicNotFound(ErrNotConnected))
}

func TestDiscoveryError_Unwraps(t *testing.T) {
	err := &DiscoveryError{Filter: Filter{NamePrefix: "Travis"}, Err: context.DeadlineExceeded}

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), `name prefix "Travis"`)
}

func TestWriteError_Unwraps(t *testing.T) {
	cause := errors.New("att: write failed")
	err := &WriteError{UUID: "2a23", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, `write to characteristic "2a23" failed: att: write failed`, err.Error())
}

func TestProperties(t *testing.T) {
	p := PropRead | PropWriteWithoutResponse | PropNotify

	assert.True(t, p.CanWrite())
	assert.True(t, p.CanNotify())
	assert.False(t, PropRead.CanWrite())
	assert.Equal(t, "read,write-without-response,notify", p.String())
	assert.Equal(t, "none", Properties(0).String())
}
