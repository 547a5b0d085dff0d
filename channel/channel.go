// Package channel converts between frequencies, physical channels and logical
// channels.
//
// Physical channels are frequency linear: 2402 MHz is channel 0 and 2480 MHz is
// channel 39. Logical channels follow the advertising aware numbering used by
// the regulatory power tables:
//
//	2402 = 37
//	2404 = 0
//	...
//	2424 = 10
//	2426 = 38
//	2428 = 11
//	...
//	2480 = 39
package channel

import (
	"github.com/pkg/errors"
)

const (
	Min     = 0
	Max     = 39
	FreqMin = 2402
	FreqMax = 2480
)

// ErrOutOfRange is returned for channels or frequencies the fixture can't use.
var ErrOutOfRange = errors.New("out of range")

// FromFrequency returns the physical channel for an even frequency in MHz
// between 2402 and 2480.
func FromFrequency(mhz int) (int, error) {
	if mhz%2 != 0 || mhz < FreqMin || mhz > FreqMax {
		return 0, errors.Wrapf(ErrOutOfRange, "frequency %d MHz must be even and %d <= freq <= %d", mhz, FreqMin, FreqMax)
	}
	return (mhz - FreqMin) / 2, nil
}

// Frequency returns the frequency in MHz of a physical channel.
func Frequency(ch int) (int, error) {
	if err := Validate(ch); err != nil {
		return 0, err
	}
	return FreqMin + 2*ch, nil
}

// Validate checks that ch is between Min and Max.
func Validate(ch int) error {
	if ch < Min || ch > Max {
		return errors.Wrapf(ErrOutOfRange, "channel %d", ch)
	}
	return nil
}

// PhysicalToLogical converts a physical channel to a logical channel.
func PhysicalToLogical(ch int) (int, error) {
	if err := Validate(ch); err != nil {
		return 0, err
	}
	switch {
	case ch == 0:
		return 37, nil
	case ch == 12:
		return 38, nil
	case ch == 39:
		return 39, nil
	case ch <= 11:
		return ch - 1, nil
	default:
		return ch - 2, nil
	}
}

// LogicalToPhysical converts a logical channel to a physical channel.
func LogicalToPhysical(l int) (int, error) {
	if err := Validate(l); err != nil {
		return 0, err
	}
	switch {
	case l == 37:
		return 0, nil
	case l == 38:
		return 12, nil
	case l == 39:
		return 39, nil
	case l <= 10:
		return l + 1, nil
	default:
		return l + 2, nil
	}
}
