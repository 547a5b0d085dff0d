// Package cmd encodes DTM command words [Vol 6, Part F, 3.3.2].
//
// Every command is a 16-bit word sent most significant byte first. Two layouts
// share the word:
//
//	standard:  cmd(15:14) freq(13:8) length(7:2) pkt(1:0)
//	alternate: cmd(15:14) freq(13:8) param(7:0)
//
// The alternate layout is only used by the "set PHY" test setup command.
package cmd

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pkg/errors"

	"github.com/rigado/dtm/radio"
)

// Size is the length of a command on the wire.
const Size = 2

const (
	maxCmd    = 0x03
	maxFreq   = 0x3F
	maxLength = 0x3F
	maxPkt    = 0x03
	maxParam  = 0xFF

	shiftCmd    = 14
	shiftFreq   = 8
	shiftLength = 2
)

// ErrFieldOverflow is returned when a value doesn't fit its bit field.
var ErrFieldOverflow = errors.New("field overflow")

// Type is the 2-bit command type.
type Type uint8

const (
	TypeSetup Type = 0 // formerly named reset
	TypeRX    Type = 1
	TypeTX    Type = 2
	TypeEnd   Type = 3
)

func (t Type) String() string {
	switch t {
	case TypeSetup:
		return "SETUP"
	case TypeRX:
		return "RX"
	case TypeTX:
		return "TX"
	case TypeEnd:
		return "END"
	}
	return fmt.Sprintf("Type(%d)", uint8(t))
}

// Setup is a test setup subcommand, carried in the freq field.
type Setup uint8

const (
	SetupReset Setup = iota
	SetupUpperLength
	SetupPhy
	SetupModulation
	SetupReadSupported
	SetupReadMax
	SetupCTE
	SetupCTESlot
	SetupAntennaArray
	SetupTransmitPower
)

// Vendor is a vendor specific subcommand, carried in the length field of a TX
// command whose packet type is radio.PacketVendor.
type Vendor uint8

const (
	VendorCarrierTest Vendor = iota
	VendorCarrierTestStudio
	VendorSetTxPower
	VendorFEMAntennaSelect
	VendorFEMGainSet
	VendorFEMActiveDelaySet
	VendorFEMDefaultParamsSet
)

func (v Vendor) String() string {
	switch v {
	case VendorCarrierTest:
		return "CARRIER_TEST"
	case VendorCarrierTestStudio:
		return "CARRIER_TEST_STUDIO"
	case VendorSetTxPower:
		return "SET_TX_POWER"
	case VendorFEMAntennaSelect:
		return "FEM_ANTENNA_SELECT"
	case VendorFEMGainSet:
		return "FEM_GAIN_SET"
	case VendorFEMActiveDelaySet:
		return "FEM_ACTIVE_DELAY_SET"
	case VendorFEMDefaultParamsSet:
		return "FEM_DEFAULT_PARAMS_SET"
	}
	return fmt.Sprintf("Vendor(%d)", uint8(v))
}

// Word is an encoded command.
type Word uint16

func check(name string, v, max uint) error {
	if v > max {
		return errors.Wrapf(ErrFieldOverflow, "%s %d > %d", name, v, max)
	}
	return nil
}

// Standard packs a command in the standard layout.
func Standard(t Type, freq, length, pkt uint8) (Word, error) {
	for _, f := range []struct {
		name string
		v    uint8
		max  uint
	}{
		{"cmd", uint8(t), maxCmd},
		{"freq", freq, maxFreq},
		{"length", length, maxLength},
		{"pkt", pkt, maxPkt},
	} {
		if err := check(f.name, uint(f.v), f.max); err != nil {
			return 0, err
		}
	}

	return Word(uint16(t)<<shiftCmd | uint16(freq)<<shiftFreq | uint16(length)<<shiftLength | uint16(pkt)), nil
}

// Alternate packs a command in the alternate layout.
func Alternate(t Type, freq, param uint8) (Word, error) {
	if err := check("cmd", uint(t), maxCmd); err != nil {
		return 0, err
	}
	if err := check("freq", uint(freq), maxFreq); err != nil {
		return 0, err
	}
	return Word(uint16(t)<<shiftCmd | uint16(freq)<<shiftFreq | uint16(param)), nil
}

// TestSetup builds a test setup command. SetupPhy takes the full 8-bit
// parameter; every other subcommand is limited to the 6-bit length field.
func TestSetup(sub Setup, param uint8) (Word, error) {
	if sub == SetupPhy {
		return Alternate(TypeSetup, uint8(sub), param)
	}
	return Standard(TypeSetup, uint8(sub), param, 0)
}

// Reset builds the test setup reset command.
func Reset() Word {
	w, _ := TestSetup(SetupReset, 0)
	return w
}

// End builds the test end command.
func End() Word {
	w, _ := Standard(TypeEnd, 0, 0, 0)
	return w
}

// Start builds an RX or TX test command. length is the lower 6 bits of the
// packet length; the upper bits are set beforehand with SetupUpperLength.
func Start(t Type, ch, length uint8, pkt radio.PacketType) (Word, error) {
	if t != TypeRX && t != TypeTX {
		return 0, fmt.Errorf("%v is not a test start command", t)
	}
	return Standard(t, ch, length, uint8(pkt))
}

// VendorSpecific builds a vendor specific command. Negative parameters are
// carried as 6-bit two's complement, so param must be within -32..63.
func VendorSpecific(sub Vendor, param int) (Word, error) {
	if param < -32 || param > maxFreq {
		return 0, errors.Wrapf(ErrFieldOverflow, "vendor parameter %d", param)
	}
	return Standard(TypeTX, uint8(param)&maxFreq, uint8(sub), uint8(radio.PacketVendor))
}

// Type returns the command type.
func (w Word) Type() Type { return Type(w >> shiftCmd) }

// Freq returns the channel or subcommand field.
func (w Word) Freq() uint8 { return uint8(w>>shiftFreq) & maxFreq }

// Length returns the standard layout length field.
func (w Word) Length() uint8 { return uint8(w>>shiftLength) & maxLength }

// Pkt returns the standard layout packet type field.
func (w Word) Pkt() radio.PacketType { return radio.PacketType(w & maxPkt) }

// Param returns the alternate layout parameter.
func (w Word) Param() uint8 { return uint8(w & maxParam) }

// IsVendor reports whether w is a vendor specific command.
func (w Word) IsVendor() bool {
	return w.Type() == TypeTX && w.Pkt() == radio.PacketVendor
}

// VendorParam returns the sign extended vendor parameter.
func (w Word) VendorParam() int {
	v := int(w.Freq())
	if v&0x20 != 0 {
		v -= 0x40
	}
	return v
}

// Marshal writes the word into b, most significant byte first.
func (w Word) Marshal(b []byte) error {
	if len(b) < Size {
		return io.ErrShortBuffer
	}
	binary.BigEndian.PutUint16(b, uint16(w))
	return nil
}

// Bytes returns the wire form of w.
func (w Word) Bytes() []byte {
	b := make([]byte, Size)
	w.Marshal(b)
	return b
}

// Unmarshal parses the wire form of a command.
func Unmarshal(b []byte) (Word, error) {
	if len(b) < Size {
		return 0, io.ErrShortBuffer
	}
	return Word(binary.BigEndian.Uint16(b)), nil
}

func (w Word) String() string {
	switch {
	case w.Type() == TypeSetup && Setup(w.Freq()) == SetupPhy:
		return fmt.Sprintf("SETUP sub=%d param=%d (0x%04x)", w.Freq(), w.Param(), uint16(w))
	case w.IsVendor():
		return fmt.Sprintf("VS %v param=%d (0x%04x)", Vendor(w.Length()), w.VendorParam(), uint16(w))
	default:
		return fmt.Sprintf("%v freq=%d len=%d pkt=%d (0x%04x)", w.Type(), w.Freq(), w.Length(), w.Pkt(), uint16(w))
	}
}

// SplitLength splits a packet length of 0..255 into the 2 upper bits sent with
// SetupUpperLength and the 6 lower bits carried by the start command.
func SplitLength(n uint8) (upper, lower uint8) {
	return n >> 6, n & maxLength
}
