// Package device defines the transport-neutral view of a Bluetooth Low Energy
// peripheral used by sessions and commands.
//
// It provides:
//   - Central, Peripheral and Characteristic interfaces implemented by the
//     go-ble binding and by test mocks
//   - Filter for discovery by name prefix and/or advertised services
//   - UUID normalization for 16-bit aliases and 128-bit UUID strings
//   - The error taxonomy shared by all layers (discovery, connection,
//     resolution and write failures)
package device
