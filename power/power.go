// Package power holds the regulatory TX power tables of the BL5340PA.
//
// A table document maps region -> antenna -> PHY -> 40 power reductions in dB,
// indexed by logical channel. The reductions match the engineering tables
// (power at the antenna port is 20 dBm minus the reduction); the SoC output
// power the fixture needs is the negated reduction.
package power

import (
	"bytes"
	_ "embed"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"

	"github.com/rigado/dtm/channel"
	"github.com/rigado/dtm/radio"
)

// ChannelCount is the number of entries in every table row.
const ChannelCount = channel.Max + 1

var (
	// ErrInvalidTable is returned when a table document has the wrong shape.
	ErrInvalidTable = errors.New("invalid power table")

	// ErrNoTable is returned when a region has no power table.
	ErrNoTable = errors.New("region has no power table")
)

//go:embed table.json
var tableJSON []byte

var defaultTable = MustLoad(bytes.NewReader(tableJSON))

type key struct {
	region  radio.Region
	antenna radio.Antenna
	phy     radio.Phy
}

// Table is a validated, read-only power table.
type Table struct {
	rows map[key][]int
}

// Default returns the built-in BL5340PA table.
func Default() *Table {
	return defaultTable
}

// MustLoad is like Load but panics on error.
func MustLoad(r io.Reader) *Table {
	t, err := Load(r)
	if err != nil {
		panic(err)
	}
	return t
}

// LoadFile loads a table document from a file.
func LoadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "can't open power table")
	}
	defer f.Close()

	return Load(f)
}

// Load decodes and validates a table document. Every table region, antenna and
// PHY must be present with exactly ChannelCount entries; unknown names are
// rejected.
func Load(r io.Reader) (*Table, error) {
	var doc map[string]map[string]map[string][]int
	if err := jsoniter.NewDecoder(r).Decode(&doc); err != nil {
		return nil, errors.Wrap(err, "can't decode power table")
	}

	t := &Table{rows: make(map[key][]int)}
	for rs, antennas := range doc {
		region, err := radio.ParseRegion(rs)
		if err != nil || !region.HasPowerTable() {
			return nil, errors.Wrapf(ErrInvalidTable, "unexpected region %q", rs)
		}
		for as, phys := range antennas {
			antenna, err := radio.ParseAntenna(as)
			if err != nil {
				return nil, errors.Wrapf(ErrInvalidTable, "%s: %v", rs, err)
			}
			for ps, row := range phys {
				phy, err := radio.ParsePhy(ps)
				if err != nil {
					return nil, errors.Wrapf(ErrInvalidTable, "%s.%s: %v", rs, as, err)
				}
				if len(row) != ChannelCount {
					return nil, errors.Wrapf(ErrInvalidTable, "invalid length for %s.%s.%s (%d)", rs, as, ps, len(row))
				}
				t.rows[key{region, antenna, phy}] = append([]int(nil), row...)
			}
		}
	}

	for _, region := range radio.TableRegions {
		for _, antenna := range radio.Antennas {
			for _, phy := range radio.Phys {
				if _, ok := t.rows[key{region, antenna, phy}]; !ok {
					return nil, errors.Wrapf(ErrInvalidTable, "missing %s.%s.%s", region, antenna, phy)
				}
			}
		}
	}

	return t, nil
}

// Resolve returns the SoC output power in dBm for a physical channel.
func (t *Table) Resolve(region radio.Region, antenna radio.Antenna, phy radio.Phy, physical int) (int, error) {
	if !region.HasPowerTable() {
		return 0, errors.Wrapf(ErrNoTable, "%s", region)
	}
	logical, err := channel.PhysicalToLogical(physical)
	if err != nil {
		return 0, err
	}
	row, ok := t.rows[key{region, antenna, phy}]
	if !ok {
		return 0, errors.Wrapf(ErrNoTable, "%s.%s.%s", region, antenna, phy)
	}
	return -row[logical], nil
}

// Len returns the number of entries for a region.
func (t *Table) Len(region radio.Region) int {
	n := 0
	for k, row := range t.rows {
		if k.region == region {
			n += len(row)
		}
	}
	return n
}
