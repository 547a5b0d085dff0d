// Package evt decodes DTM response events [Vol 6, Part F, 3.4].
//
// Every event is a 16-bit word sent most significant byte first. Bit 15 selects
// the event type: a status event carries its outcome in bit 0, a packet report
// carries a 15-bit packet count.
package evt

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"
)

// Size is the length of an event on the wire.
const Size = 2

const (
	flagPacketReport = 0x8000
	statusFailure    = 0x0001

	// MaxCount is the largest packet count a report can carry.
	MaxCount = 0x7FFF
)

// ErrNoResponse is returned when fewer than Size bytes arrived before the
// read timed out.
var ErrNoResponse = errors.New("response not received")

// Response is a decoded event.
type Response interface {
	Word() uint16
	String() string
}

// Status reports the outcome of the last command.
type Status struct {
	Success bool
}

// Word encodes the status event.
func (s Status) Word() uint16 {
	if s.Success {
		return 0
	}
	return statusFailure
}

func (s Status) String() string {
	if s.Success {
		return "Status(success)"
	}
	return "Status(failure)"
}

// PacketReport answers a test end command with the number of packets received.
// It is always zero after a TX test.
type PacketReport struct {
	Count uint16
}

// NewPacketReport clamps n into the 15-bit count field.
func NewPacketReport(n int) PacketReport {
	switch {
	case n < 0:
		n = 0
	case n > MaxCount:
		n = MaxCount
	}
	return PacketReport{Count: uint16(n)}
}

// Word encodes the packet report event.
func (p PacketReport) Word() uint16 {
	return flagPacketReport | (p.Count & MaxCount)
}

func (p PacketReport) String() string {
	return fmt.Sprintf("PacketReport(%d)", p.Count)
}

// Decode parses an event.
func Decode(b []byte) (Response, error) {
	if len(b) < Size {
		return nil, errors.Wrapf(ErrNoResponse, "got %d of %d bytes", len(b), Size)
	}

	w := binary.BigEndian.Uint16(b)
	if w&flagPacketReport != 0 {
		return PacketReport{Count: w & MaxCount}, nil
	}
	return Status{Success: w&statusFailure == 0}, nil
}

// Marshal writes the wire form of r into b.
func Marshal(r Response, b []byte) error {
	if len(b) < Size {
		return io.ErrShortBuffer
	}
	binary.BigEndian.PutUint16(b, r.Word())
	return nil
}

// Bytes returns the wire form of r.
func Bytes(r Response) []byte {
	b := make([]byte, Size)
	Marshal(r, b)
	return b
}
