//go:build test

package main

import (
	"bytes"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/session"
	"github.com/srg/blepilot/internal/testutils"
	"github.com/srg/blepilot/pkg/config"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

// Test device addresses for consistent mock device identification
const (
	TestDeviceAddress1 = "00:00:00:00:00:01"
	TestDeviceAddress2 = "00:00:00:00:00:02"
)

// syncBuffer is a bytes.Buffer safe for the console goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// CommandTestSuite wires mock BLE devices into command helpers.
// All cmd/blepilot test suites should embed it.
type CommandTestSuite struct {
	suite.Suite

	Helper     *testutils.TestHelper
	Central    *testutils.MockCentral
	Peripheral *testutils.MockPeripheral
	Char       *testutils.MockCharacteristic
	Out        *syncBuffer

	writesMu sync.Mutex
	writes   [][]byte
}

func (s *CommandTestSuite) SetupTest() {
	color.NoColor = true
	s.Helper = testutils.NewTestHelper(s.T())
	s.Central = &testutils.MockCentral{}
	s.Peripheral = testutils.NewMockPeripheral(TestDeviceAddress1)
	s.Out = &syncBuffer{}
	s.writes = nil
}

// NewApp returns an app for the named profile with fast timings.
func (s *CommandTestSuite) NewApp(profile string) *app {
	cfg := config.DefaultConfig()
	cfg.TickInterval = 10 * time.Millisecond
	cfg.ConnectTimeout = 2 * time.Second
	cfg.WriteTimeout = time.Second
	cfg.HoldTimeout = 5 * time.Second

	a := &app{cfg: cfg, logger: s.Helper.Logger, out: s.Out}
	if profile != "" {
		p, err := resolveProfile(cfg, profile, "")
		s.Require().NoError(err, "built-in profile MUST resolve")
		a.profile = p
	}
	return a
}

// ExpectDevice makes discovery find one device advertising name and makes its
// command characteristic record every write.
func (s *CommandTestSuite) ExpectDevice(p session.Profile, name string, props device.Properties) {
	s.Char = testutils.NewMockCharacteristic(p.Characteristic, props)
	s.Char.On("Write", mock.Anything, mock.Anything).Return(nil).Run(func(args mock.Arguments) {
		s.writesMu.Lock()
		s.writes = append(s.writes, append([]byte(nil), args.Get(0).([]byte)...))
		s.writesMu.Unlock()
	}).Maybe()

	s.Central.Advertise(testutils.Advertisement{
		Name:        name,
		Address:     TestDeviceAddress1,
		ServiceList: p.Filter.Services,
		Strength:    -50,
	})
	s.Central.On("Dial", mock.Anything, TestDeviceAddress1).Return(s.Peripheral, nil).Once()
	s.Peripheral.On("Characteristic", p.Service, p.Characteristic).Return(s.Char, nil)
	s.Peripheral.On("Name").Return(name).Maybe()
	s.Peripheral.On("Disconnect").Return(nil).Maybe()
}

// Writes returns the payloads written to the command characteristic so far.
func (s *CommandTestSuite) Writes() [][]byte {
	s.writesMu.Lock()
	defer s.writesMu.Unlock()
	return append([][]byte(nil), s.writes...)
}

// WaitForWrite waits until want has been written.
func (s *CommandTestSuite) WaitForWrite(want []byte) bool {
	return testutils.WaitFor(2*time.Second, func() bool {
		for _, w := range s.Writes() {
			if bytes.Equal(w, want) {
				return true
			}
		}
		return false
	})
}

// ExecuteCommand runs a cobra command with args, returns output and error.
func (s *CommandTestSuite) ExecuteCommand(cmd *cobra.Command, args ...string) (string, error) {
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}
