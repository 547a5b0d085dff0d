package dtm

import (
	"fmt"

	"github.com/rigado/dtm/cmd"
	"github.com/rigado/dtm/radio"
)

// Mode is what the fixture is doing.
type Mode int

const (
	ModeIdle Mode = iota
	ModeTxRunning
	ModeRxRunning
	ModeCarrierRunning
)

func (m Mode) String() string {
	switch m {
	case ModeIdle:
		return "Idle"
	case ModeTxRunning:
		return "TxRunning"
	case ModeRxRunning:
		return "RxRunning"
	case ModeCarrierRunning:
		return "CarrierRunning"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// State is a snapshot of what the session knows about the fixture.
type State struct {
	Mode Mode

	// Command is the type of the last test started (RX or TX); it decides
	// how the next test end response is read.
	Command cmd.Type

	Channel      int
	PacketType   radio.PacketType
	PacketLength int
	Phy          radio.Phy
	Antenna      radio.Antenna
	Region       radio.Region

	// TxPower is the last SoC output power applied, in dBm.
	TxPower int
	FEMGain int

	// PacketCount is -1 while a command is in flight or when the count is
	// unknown. After a timed TX test it is an estimate.
	PacketCount int
}
