//go:build test

package main

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/blepilot/internal/device"
	"github.com/srg/blepilot/internal/dispatcher"
	"github.com/srg/blepilot/internal/protocol"
	"github.com/srg/blepilot/internal/session"
	"github.com/srg/blepilot/internal/testutils"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type PilotTestSuite struct {
	CommandTestSuite
}

func TestPilotTestSuite(t *testing.T) {
	suite.Run(t, new(PilotTestSuite))
}

// start runs p against a pipe and returns a key sender and the run result.
func (s *PilotTestSuite) start(p *pilot, a *app) (func(string), <-chan error) {
	pr, pw := io.Pipe()
	s.T().Cleanup(func() { _ = pw.Close() })

	done := make(chan error, 1)
	go func() { done <- p.run(context.Background(), a, pr) }()

	s.Require().True(testutils.WaitFor(2*time.Second, func() bool {
		return p.sess.State() == session.Connected
	}), "pilot MUST connect to the advertised device")

	return func(keys string) {
		_, err := pw.Write([]byte(keys))
		s.Require().NoError(err)
	}, done
}

func (s *PilotTestSuite) quit(send func(string), done <-chan error) {
	send("q")
	select {
	case err := <-done:
		s.NoError(err, "quit MUST end the session without error")
	case <-time.After(3 * time.Second):
		s.FailNow("pilot did not stop after quit")
	}
}

func (s *PilotTestSuite) countWrites(want []byte) int {
	n := 0
	for _, w := range s.Writes() {
		if string(w) == string(want) {
			n++
		}
	}
	return n
}

func (s *PilotTestSuite) TestCar_DrivesAfterEnter() {
	// GOAL: Verify the car sends its bitfield only after Enter armed the dispatcher
	//
	// TEST SCENARIO: W before Enter → nothing sent; Enter → forward frame [1] sent; screen shows state

	a := s.NewApp(session.Car)
	s.ExpectDevice(a.profile, "SED-01", device.PropWrite)

	p, err := newCarPilot(a, s.Central)
	s.Require().NoError(err)

	send, done := s.start(p, a)
	send("w")
	time.Sleep(50 * time.Millisecond)
	s.Empty(s.Writes(), "an idle dispatcher MUST not send")

	send("\r")
	s.Require().True(s.WaitForWrite([]byte{1}), "forward MUST be sent once armed")
	s.Equal(dispatcher.Armed, p.disp.State())

	s.Require().True(testutils.WaitFor(time.Second, func() bool { return p.disp.LastSent().Equal(protocol.NewFrame(1)) }))
	testutils.AssertText(s.T(), strings.Join(p.console.Screen(), "\n"), `
blepilot car  connected  SED-01 (00:00:00:00:00:01)

sending:  on
controls: forward
last:     01

↑/W forward  ↓/S backward  ←/A left  →/D right  Space stop  Enter start/stop sending  C reconnect  Q quit`)

	s.quit(send, done)
	s.Equal(dispatcher.Idle, p.disp.State(), "quit MUST disarm the dispatcher")
	s.Equal(session.Disconnected, p.sess.State())
	s.Equal(1, s.countWrites([]byte{1}), "unchanged state MUST be written once")
}

func (s *PilotTestSuite) TestCar_ReconnectResendsState() {
	// GOAL: Verify C reconnects to the cached address and the held direction is resent
	//
	// TEST SCENARIO: Drive forward → peripheral drops → C → second dial → [1] written again

	a := s.NewApp(session.Car)
	s.ExpectDevice(a.profile, "SED-01", device.PropWrite)

	second := testutils.NewMockPeripheral(TestDeviceAddress1)
	second.On("Characteristic", a.profile.Service, a.profile.Characteristic).Return(s.Char, nil)
	second.On("Name").Return("SED-01").Maybe()
	second.On("Disconnect").Return(nil).Maybe()
	s.Central.On("Dial", mock.Anything, TestDeviceAddress1).Return(second, nil).Once()

	p, err := newCarPilot(a, s.Central)
	s.Require().NoError(err)

	send, done := s.start(p, a)
	send("\rw")
	s.Require().True(s.WaitForWrite([]byte{1}))

	s.Peripheral.Drop()
	s.Require().True(testutils.WaitFor(time.Second, func() bool {
		return p.sess.State() == session.Disconnected
	}), "dropped link MUST disconnect the session")

	send("c")
	s.Require().True(testutils.WaitFor(2*time.Second, func() bool {
		return s.countWrites([]byte{1}) == 2
	}), "held direction MUST be resent after reconnect")
	s.True(testutils.WaitFor(time.Second, func() bool { return p.console.Message() == "connected" }),
		"a successful reconnect MUST be reported")

	s.quit(send, done)
	s.Central.AssertNumberOfCalls(s.T(), "Scan", 1)
	s.Central.AssertNumberOfCalls(s.T(), "Dial", 2)
}

func (s *PilotTestSuite) TestDrone_TakeOffPilotsAndLands() {
	// GOAL: Verify the drone one-shot commands and periodic frames share one sequence
	//
	// TEST SCENARIO: T → take-off [4,0,...] then 20-byte frames from seq 1; Enter → land; notifications shown

	a := s.NewApp(session.Drone)
	s.ExpectDevice(a.profile, "Travis_01", device.PropWrite)
	for _, uuid := range a.profile.Notify {
		c := testutils.NewMockCharacteristic(uuid, device.PropNotify)
		c.On("Subscribe", mock.Anything).Return(nil).Run(func(args mock.Arguments) {
			args.Get(0).(func([]byte))([]byte{0x01, 0x02})
		})
		s.Peripheral.On("Characteristic", a.profile.NotifyService, uuid).Return(c, nil)
	}

	p, err := newDronePilot(a, s.Central)
	s.Require().NoError(err)

	send, done := s.start(p, a)
	send("t")
	s.Require().True(s.WaitForWrite([]byte{4, 0, 2, 0, 1, 0}), "take-off MUST use sequence 0")
	s.Require().True(testutils.WaitFor(2*time.Second, func() bool {
		for _, w := range s.Writes() {
			if len(w) == protocol.DroneFrameLen && w[1] == 1 {
				return true
			}
		}
		return false
	}), "piloting frames MUST follow take-off with the next sequence number")

	send("\r")
	s.Require().True(testutils.WaitFor(2*time.Second, func() bool {
		writes := s.Writes()
		if len(writes) == 0 {
			return false
		}
		last := writes[len(writes)-1]
		return len(last) == 6 && last[0] == 4 && last[4] == 3
	}), "land MUST be the last command sent")
	s.Equal(dispatcher.Idle, p.disp.State(), "land MUST stop the piloting frames")

	s.Contains(strings.Join(p.console.Screen(), "\n"), "notify:   9a66fb1c: 01 02")

	s.quit(send, done)
}

func (s *PilotTestSuite) TestLED_ReadsBoardAndSendsEdits() {
	// GOAL: Verify the board state read on connect is not resent and edits are
	//
	// TEST SCENARIO: Board reports (0,0) lit → no write; Space toggles it off → 16 zero bytes written

	a := s.NewApp(session.LED)
	s.ExpectDevice(a.profile, "LED", device.PropRead|device.PropWrite)
	lit := protocol.Grid{}.Set(0, 0, true)
	s.Char.On("Read").Return(protocol.EncodeMatrix(lit).Bytes(), nil)

	p, err := newLEDPilot(a, s.Central)
	s.Require().NoError(err)

	send, done := s.start(p, a)
	s.Require().True(testutils.WaitFor(time.Second, func() bool {
		return p.disp.State() == dispatcher.Armed
	}), "the LED dispatcher MUST arm after connect")
	time.Sleep(50 * time.Millisecond)
	s.Empty(s.Writes(), "the pattern read from the board MUST not be resent")

	send(" ")
	s.Require().True(s.WaitForWrite(make([]byte, protocol.MatrixFrameLen)), "toggled board MUST be sent")

	s.quit(send, done)
}

func (s *PilotTestSuite) TestLED_UnreadableBoardStartsBlank() {
	a := s.NewApp(session.LED)
	s.ExpectDevice(a.profile, "LED", device.PropRead|device.PropWrite)
	s.Char.On("Read").Return([]byte{1, 2}, nil)

	p, err := newLEDPilot(a, s.Central)
	s.Require().NoError(err)

	send, done := s.start(p, a)
	s.Require().True(s.WaitForWrite(make([]byte, protocol.MatrixFrameLen)), "blank board MUST be sent when the state is unknown")
	s.Contains(s.Helper.Messages(logrus.WarnLevel), "Board state unavailable")

	s.quit(send, done)
}
