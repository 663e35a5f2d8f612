package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/blepilot/internal/device"
)

// Command-level errors
var (
	// ErrConnectionLost indicates the peripheral dropped the link while a
	// command was still using it.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError turns an error into a one-line message for the terminal.
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var (
		discErr *device.DiscoveryError
		nfErr   *device.NotFoundError
	)
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off; turn it on and try again"
	case errors.Is(err, device.ErrPermissionDenied):
		return "Bluetooth permission denied; on Linux run with CAP_NET_ADMIN (or sudo), on macOS allow Bluetooth access for the terminal"
	case errors.As(err, &discErr):
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Sprintf("no device matching %s found before the timeout; is it powered on and in range?", discErr.Filter)
		}
		return discErr.Error()
	case errors.As(err, &nfErr):
		return fmt.Sprintf("%s; check the profile service and characteristic UUIDs", nfErr.Error())
	case errors.Is(err, device.ErrWriteInFlight):
		return "previous command is still being written; try again"
	case errors.Is(err, ErrConnectionLost):
		return "connection to the device was lost; reconnect and try again"
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("timed out: %v", err)
	default:
		return err.Error()
	}
}
