// Package timing estimates how long the fixture takes to send one test packet.
//
// The estimate follows the LE test packet format [Vol 6, Part F, 4.1] and the
// fixture's 625 us scheduling granularity. It ignores serial latency and
// execution time, so packet counts derived from it are approximate and always
// on the low side of what was really sent.
package timing

import (
	"time"

	"github.com/rigado/dtm/radio"
)

// Granularity is the fixture's packet scheduling step.
const Granularity = 625

// OverheadBits returns the per packet protocol overhead for a PHY.
func OverheadBits(phy radio.Phy) int {
	switch phy {
	case radio.Phy2M:
		// 16 preamble, 32 sync word, 8 header, 8 length, 24 CRC
		return 88
	case radio.PhyCodedS8:
		// 80 preamble, then sync word, CI, TERM1, header, length, CRC
		// and TERM2 all at coding 8
		return 720
	case radio.PhyCodedS2:
		// 80 preamble, sync word, CI and TERM1 at coding 8, the rest at coding 2
		return 462
	default:
		// 8 preamble, 32 sync word, 8 header, 8 length, 24 CRC
		return 80
	}
}

// AirTimeUS returns the on-air duration of one packet in microseconds.
func AirTimeUS(phy radio.Phy, length int) int {
	// 1 bit per microsecond at 1M
	us := length * 8

	switch phy {
	case radio.PhyCodedS8:
		us *= 8
	case radio.PhyCodedS2:
		us *= 2
	}

	us += OverheadBits(phy)

	if phy == radio.Phy2M {
		us /= 2
	}
	return us
}

// IntervalUS returns the packet interval in microseconds: the air time plus
// 249 us, rounded up to a multiple of Granularity.
func IntervalUS(phy radio.Phy, length int) int {
	us := AirTimeUS(phy, length) + 249
	return (us + Granularity - 1) / Granularity * Granularity
}

// EstimateCount returns how many packets fit in d.
func EstimateCount(phy radio.Phy, length int, d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(d.Microseconds() / int64(IntervalUS(phy, length)))
}
