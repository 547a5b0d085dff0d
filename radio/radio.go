// Package radio holds the enumerations shared by the DTM codecs, the power
// tables and the test session.
package radio

import "fmt"

// Phy is the physical layer mode used for a test.
type Phy uint8

// PHY modes. The order matches the fixture's PHY ranges.
const (
	Phy1M Phy = iota
	Phy2M
	PhyCodedS8
	PhyCodedS2
)

// Phys lists every supported PHY.
var Phys = []Phy{Phy1M, Phy2M, PhyCodedS8, PhyCodedS2}

var phyNames = map[Phy]string{
	Phy1M:      "PHY_1M",
	Phy2M:      "PHY_2M",
	PhyCodedS8: "CODED_PHY_S8",
	PhyCodedS2: "CODED_PHY_S2",
}

// The fixture accepts a range of values per PHY; the top of each range is used.
var phySetupParams = map[Phy]uint8{
	Phy1M:      7,
	Phy2M:      11,
	PhyCodedS8: 15,
	PhyCodedS2: 19,
}

func (p Phy) String() string {
	if s, ok := phyNames[p]; ok {
		return s
	}
	return fmt.Sprintf("Phy(%d)", uint8(p))
}

// Valid reports whether p is a known PHY.
func (p Phy) Valid() bool {
	_, ok := phyNames[p]
	return ok
}

// SetupParam returns the 8-bit parameter of the "set PHY" setup command.
func (p Phy) SetupParam() uint8 {
	return phySetupParams[p]
}

// PhyFromSetupParam maps a "set PHY" parameter back to a PHY.
// Each PHY owns a block of four values starting at 4.
func PhyFromSetupParam(v uint8) (Phy, error) {
	if v < 4 || v > 19 {
		return 0, fmt.Errorf("invalid phy parameter %d", v)
	}
	return Phy((v - 4) / 4), nil
}

// ParsePhy accepts the names produced by Phy.String.
func ParsePhy(s string) (Phy, error) {
	for p, n := range phyNames {
		if n == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phy %q", s)
}

// Antenna identifies which antenna input the FEM is wired to.
type Antenna uint8

const (
	AntennaInternal Antenna = iota
	AntennaExternal
)

// Antennas lists every antenna.
var Antennas = []Antenna{AntennaInternal, AntennaExternal}

func (a Antenna) String() string {
	switch a {
	case AntennaInternal:
		return "INTERNAL"
	case AntennaExternal:
		return "EXTERNAL"
	}
	return fmt.Sprintf("Antenna(%d)", uint8(a))
}

// ParseAntenna accepts the names produced by Antenna.String.
func ParseAntenna(s string) (Antenna, error) {
	for _, a := range Antennas {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown antenna %q", s)
}

// Region is a regulatory domain.
type Region uint8

const (
	RegionUnset Region = iota
	RegionCE
	RegionFCCIC
	RegionRCM
)

// TableRegions are the regions that carry a power table.
var TableRegions = []Region{RegionFCCIC, RegionRCM}

func (r Region) String() string {
	switch r {
	case RegionUnset:
		return "UNSET"
	case RegionCE:
		return "CE"
	case RegionFCCIC:
		return "FCC_IC"
	case RegionRCM:
		return "RCM"
	}
	return fmt.Sprintf("Region(%d)", uint8(r))
}

// HasPowerTable reports whether TX power in r comes from a power table.
func (r Region) HasPowerTable() bool {
	return r == RegionFCCIC || r == RegionRCM
}

// ParseRegion accepts the names produced by Region.String.
func ParseRegion(s string) (Region, error) {
	for _, r := range []Region{RegionUnset, RegionCE, RegionFCCIC, RegionRCM} {
		if r.String() == s {
			return r, nil
		}
	}
	return 0, fmt.Errorf("unknown region %q", s)
}

// PacketType selects the test payload pattern. PacketVendor is not a payload;
// it marks a vendor specific command.
type PacketType uint8

const (
	PacketPRBS9 PacketType = iota
	Packet11110000
	Packet10101010
	PacketVendor
)

func (p PacketType) String() string {
	switch p {
	case PacketPRBS9:
		return "PRBS9"
	case Packet11110000:
		return "11110000"
	case Packet10101010:
		return "10101010"
	case PacketVendor:
		return "VS"
	}
	return fmt.Sprintf("PacketType(%d)", uint8(p))
}

// ParsePacketType accepts the names produced by PacketType.String.
func ParsePacketType(s string) (PacketType, error) {
	for _, p := range []PacketType{PacketPRBS9, Packet11110000, Packet10101010, PacketVendor} {
		if p.String() == s {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown packet type %q", s)
}
