package dtm

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/rigado/dtm/channel"
	"github.com/rigado/dtm/cmd"
	"github.com/rigado/dtm/radio"
)

// SupportedPowers are the output powers of the nRF5340 SoC in dBm.
var SupportedPowers = []int{0, -1, -2, -3, -4, -5, -6, -7, -8, -12, -16, -20, -40}

const (
	femGainMin = 1
	femGainMax = 31

	cePower   = -16
	ceFEMGain = 23 // ~18 dB
)

// Reset sends the test setup reset command. The fixture stops any running
// test, clears the upper packet length bits and returns to the 1M PHY.
func (s *Session) Reset() error {
	s.anomaly = nil
	return s.reset()
}

func (s *Session) reset() error {
	ok, err := s.expectSuccess("reset", cmd.Reset())
	if err != nil {
		return err
	}
	if ok {
		s.state.Mode = ModeIdle
		s.state.Phy = radio.Phy1M
		s.state.PacketLength = int(s.lower)
	}
	return nil
}

// SetFrequency selects the channel of an even frequency between 2402 and
// 2480 MHz. Nothing is sent until the next test starts.
func (s *Session) SetFrequency(mhz int) error {
	ch, err := channel.FromFrequency(mhz)
	if err != nil {
		return s.invalid("set frequency", err)
	}
	s.setChannel(ch)
	return nil
}

// SetChannelPhysical selects a physical channel, 2402 + 2*ch MHz.
func (s *Session) SetChannelPhysical(ch int) error {
	if err := channel.Validate(ch); err != nil {
		return s.invalid("set channel", err)
	}
	s.setChannel(ch)
	return nil
}

// SetChannelLogical selects a logical channel.
func (s *Session) SetChannelLogical(l int) error {
	ch, err := channel.LogicalToPhysical(l)
	if err != nil {
		return s.invalid("set logical channel", err)
	}
	s.setChannel(ch)
	return nil
}

// ChannelLogical returns the logical number of the selected channel.
func (s *Session) ChannelLogical() int {
	l, _ := channel.PhysicalToLogical(s.state.Channel)
	return l
}

func (s *Session) setChannel(ch int) {
	if s.state.Channel != ch {
		s.state.Channel = ch
		s.log.Infof("Physical channel set to %d", ch)
	}
}

// SetPacketLength sets the test packet length. The upper 2 bits are sent now
// with a test setup command; the lower 6 bits go out with the next start
// command, so this must succeed before that test starts.
func (s *Session) SetPacketLength(n int) error {
	s.anomaly = nil
	return s.setPacketLength(n)
}

func (s *Session) setPacketLength(n int) error {
	const op = "set packet length"
	if n < 0 || n > PacketLengthMax {
		return s.invalid(op, fmt.Errorf("packet length %d not in 0..%d", n, PacketLengthMax))
	}

	upper, lower := cmd.SplitLength(uint8(n))
	w, err := cmd.TestSetup(cmd.SetupUpperLength, upper)
	if err != nil {
		return s.invalid(op, err)
	}

	ok, err := s.expectSuccess(op, w)
	if err != nil {
		return err
	}
	if ok {
		s.lower = lower
		s.state.PacketLength = n
	}
	return nil
}

// SetPacketType selects the test payload pattern.
func (s *Session) SetPacketType(pt radio.PacketType) error {
	if pt > radio.Packet10101010 {
		return s.invalid("set packet type", fmt.Errorf("%v is not a payload pattern", pt))
	}
	s.state.PacketType = pt
	return nil
}

// SetPhy selects the PHY with the alternate layout test setup command.
func (s *Session) SetPhy(p radio.Phy) error {
	const op = "set phy"
	s.anomaly = nil
	if !p.Valid() {
		return s.invalid(op, fmt.Errorf("unknown %v", p))
	}

	w, err := cmd.TestSetup(cmd.SetupPhy, p.SetupParam())
	if err != nil {
		return s.invalid(op, err)
	}

	ok, err := s.expectSuccess(op, w)
	if err != nil {
		return err
	}
	if ok {
		s.state.Phy = p
	}
	return nil
}

// SetPhy1M selects 1 Mbit/s (1 symbol per bit).
func (s *Session) SetPhy1M() error { return s.SetPhy(radio.Phy1M) }

// SetPhy2M selects 2 Mbit/s.
func (s *Session) SetPhy2M() error { return s.SetPhy(radio.Phy2M) }

// SetPhyCodedS8 selects coded PHY, 8 symbols per bit.
func (s *Session) SetPhyCodedS8() error { return s.SetPhy(radio.PhyCodedS8) }

// SetPhyCodedS2 selects coded PHY, 2 symbols per bit.
func (s *Session) SetPhyCodedS2() error { return s.SetPhy(radio.PhyCodedS2) }

// SetTxPower sets the SoC output power in dBm. It is rejected once a region
// is configured, since the region decides the power from then on.
func (s *Session) SetTxPower(dbm int) error {
	if s.state.Region != radio.RegionUnset {
		return s.invalid("set tx power", ErrRegionSet)
	}
	s.anomaly = nil
	return s.setTxPower(dbm)
}

func (s *Session) setTxPower(dbm int) error {
	const op = "set tx power"
	supported := false
	for _, p := range SupportedPowers {
		if p == dbm {
			supported = true
			break
		}
	}
	if !supported {
		return s.invalid(op, errors.Wrapf(ErrUnsupportedPower, "%d dBm", dbm))
	}

	ok, err := s.sendVendor(op, cmd.VendorSetTxPower, dbm)
	if err != nil {
		return err
	}
	if ok {
		s.state.TxPower = dbm
	}
	return nil
}

// SetFEMGain sets the nRF21540 gain register (1..31). 24-26 is nominally
// 20 dB.
func (s *Session) SetFEMGain(gain int) error {
	s.anomaly = nil
	return s.setFEMGain(gain)
}

func (s *Session) setFEMGain(gain int) error {
	const op = "set fem gain"
	if gain < femGainMin || gain > femGainMax {
		return s.invalid(op, fmt.Errorf("invalid FEM gain %d", gain))
	}

	ok, err := s.sendVendor(op, cmd.VendorFEMGainSet, gain)
	if err != nil {
		return err
	}
	if ok {
		s.state.FEMGain = gain
	}
	return nil
}

// SelectAntenna selects the FEM antenna output: port 2, or port 1 for any
// other value.
func (s *Session) SelectAntenna(port int) error {
	ant := 0
	if port == 2 {
		ant = 1
	}
	s.anomaly = nil
	_, err := s.sendVendor("select antenna", cmd.VendorFEMAntennaSelect, ant)
	return err
}

// ConfigureForRegion selects the regulatory region. It can only be done once
// per connection: FEM gain is not tracked, so changing region requires a
// board reset and a new session. CE applies a fixed power and FEM gain right
// away; FCC/IC and RCM look the power up from the table whenever a TX test
// starts, for which the antenna wiring must be known. The region is only set
// once the CE commands were answered, so a lost answer can be retried.
func (s *Session) ConfigureForRegion(region radio.Region, internalAntenna bool) error {
	const op = "configure region"
	if s.state.Region != radio.RegionUnset {
		return s.invalid(op, ErrRegionSet)
	}
	s.anomaly = nil

	switch region {
	case radio.RegionCE:
		if err := s.setTxPower(cePower); err != nil {
			return err
		}
		if err := s.setFEMGain(ceFEMGain); err != nil {
			return err
		}
		s.state.Region = region
		return nil

	case radio.RegionFCCIC, radio.RegionRCM:
		s.state.Region = region
		if internalAntenna {
			s.state.Antenna = radio.AntennaInternal
		}
		s.log.Infof("region %v, antenna %v", region, s.state.Antenna)
		return nil

	default:
		return s.invalid(op, fmt.Errorf("can't configure %v", region))
	}
}

// ConfigureForCE configures operation in Europe.
func (s *Session) ConfigureForCE() error {
	return s.ConfigureForRegion(radio.RegionCE, false)
}

// ConfigureForNorthAmerica uses the FCC/IC power tables.
func (s *Session) ConfigureForNorthAmerica(internalAntenna bool) error {
	return s.ConfigureForRegion(radio.RegionFCCIC, internalAntenna)
}

// ConfigureForAustraliaNZ uses the RCM power tables.
func (s *Session) ConfigureForAustraliaNZ(internalAntenna bool) error {
	return s.ConfigureForRegion(radio.RegionRCM, internalAntenna)
}

// adjustPowerForRegion applies the table power for the current region,
// antenna, PHY and channel.
func (s *Session) adjustPowerForRegion() error {
	if !s.state.Region.HasPowerTable() {
		return nil
	}

	p, err := s.table.Resolve(s.state.Region, s.state.Antenna, s.state.Phy, s.state.Channel)
	if err != nil {
		return s.invalid("adjust power", err)
	}
	return s.setTxPower(p)
}
