// Package dtm drives a Bluetooth LE Direct Test Mode fixture (an nRF5340 with
// an nRF21540 front end) over a UART.
//
// Every command is a single 16-bit word answered by a single 16-bit event. A
// Session owns the connection and the test configuration that is carried into
// each command. It is not safe for concurrent use; a TX/RX pair is two
// independent sessions sequenced by the caller.
package dtm

import (
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/rigado/dtm/cmd"
	"github.com/rigado/dtm/evt"
	"github.com/rigado/dtm/power"
	"github.com/rigado/dtm/radio"
)

const (
	PacketLengthMax = 255
)

// Session is a connection to one fixture.
type Session struct {
	name      string
	transport transport
	rw        io.ReadWriteCloser

	log   Logger
	table *power.Table
	sleep func(time.Duration)

	state State
	// lower 6 bits of the packet length, sent with every start command
	lower uint8

	anomaly error
}

// New connects to a fixture, resets it and sets the maximum packet length, so
// power measurements and conformance behavior don't depend on what the
// fixture did before. Failures are reported as ErrConnection.
func New(opts ...Option) (*Session, error) {
	s := &Session{
		table: power.Default(),
		sleep: time.Sleep,
		state: State{
			Mode:         ModeIdle,
			Command:      cmd.TypeTX,
			PacketType:   radio.PacketPRBS9,
			PacketLength: PacketLengthMax,
			Phy:          radio.Phy1M,
			Antenna:      radio.AntennaExternal,
			Region:       radio.RegionUnset,
		},
		lower: PacketLengthMax & 0x3F,
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.Wrap(err, "can't set options")
		}
	}

	if s.log == nil {
		s.log = GetLogger()
	}
	if s.name != "" {
		s.log = s.log.ChildLogger(map[string]interface{}{"dut": s.name})
	}

	rw, err := getTransport(s.transport, s.log)
	if err != nil {
		return nil, errors.Wrapf(ErrConnection, "can't open transport: %v", err)
	}
	s.rw = rw

	if err := s.init(); err != nil {
		s.rw.Close()
		return nil, errors.Wrapf(ErrConnection, "%v", err)
	}

	return s, nil
}

func (s *Session) init() error {
	s.anomaly = nil
	if err := s.reset(); err != nil {
		return err
	}
	if err := s.setPacketLength(PacketLengthMax); err != nil {
		return err
	}
	if s.anomaly != nil {
		return s.anomaly
	}
	return nil
}

// Close releases the transport.
func (s *Session) Close() error {
	return s.rw.Close()
}

// State returns a snapshot of the session state.
func (s *Session) State() State {
	return s.state
}

// PacketCount returns the packet count of the last test, or -1 if unknown.
// After a timed TX test it is an estimate from the packet interval that
// ignores serial latency, so it undercounts what was really sent.
func (s *Session) PacketCount() int {
	return s.state.PacketCount
}

// Region returns the configured region, if any.
func (s *Session) Region() (radio.Region, bool) {
	return s.state.Region, s.state.Region != radio.RegionUnset
}

// LastAnomaly returns the last unexpected response of the most recent
// operation that talked to the fixture, or nil. Each such operation clears it
// when it begins.
func (s *Session) LastAnomaly() error {
	return s.anomaly
}

func (s *Session) invalid(op string, err error) error {
	ve := &ValidationError{Op: op, Err: err}
	s.log.Error(ve.Error())
	return ve
}

func (s *Session) unexpected(op string, rsp evt.Response, msg string) {
	s.anomaly = &ResponseError{Op: op, Response: rsp}
	s.log.Errorf("%s: %s (%v)", op, msg, rsp)
}

// exchange sends one command and reads one response.
func (s *Session) exchange(op string, w cmd.Word) (evt.Response, error) {
	b := w.Bytes()
	s.log.Debugf("Tx %x %v", b, w)
	if _, err := s.rw.Write(b); err != nil {
		return nil, errors.Wrapf(err, "%s: can't send", op)
	}
	s.state.PacketCount = -1

	rb, err := s.read()
	s.log.Debugf("Rx %x", rb)
	rsp, derr := evt.Decode(rb)
	if derr != nil {
		if err != nil {
			return nil, errors.Wrapf(derr, "%s: %v", op, err)
		}
		return nil, errors.Wrap(derr, op)
	}
	return rsp, nil
}

// read collects one event. It stops early on a read that returns nothing,
// which the transports use to signal a timeout.
func (s *Session) read() ([]byte, error) {
	b := make([]byte, evt.Size)
	n := 0
	for n < len(b) {
		m, err := s.rw.Read(b[n:])
		n += m
		if err != nil {
			return b[:n], err
		}
		if m == 0 {
			break
		}
	}
	return b[:n], nil
}

// expectSuccess sends w and reports whether the fixture answered with a
// success status. Other answers are recorded as anomalies.
func (s *Session) expectSuccess(op string, w cmd.Word) (bool, error) {
	rsp, err := s.exchange(op, w)
	if err != nil {
		s.log.Error(err)
		return false, err
	}

	switch r := rsp.(type) {
	case evt.Status:
		if !r.Success {
			s.unexpected(op, r, "command failed")
			return false, nil
		}
		return true, nil
	default:
		s.unexpected(op, rsp, "response type was not status")
		return false, nil
	}
}

func (s *Session) sendVendor(op string, sub cmd.Vendor, param int) (bool, error) {
	w, err := cmd.VendorSpecific(sub, param)
	if err != nil {
		return false, s.invalid(op, err)
	}
	s.log.Debugf("sending vendor specific command: %v", sub)
	return s.expectSuccess(op, w)
}
