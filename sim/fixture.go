package sim

import (
	"io"
	"sync"
	"time"

	"github.com/rigado/dtm/cmd"
	"github.com/rigado/dtm/evt"
	"github.com/rigado/dtm/radio"
)

type mode int

const (
	idle mode = iota
	transmitting
	receiving
	carrier
)

// Snapshot is the emulated fixture's configuration.
type Snapshot struct {
	Upper   uint8
	Phy     radio.Phy
	TxPower int
	FEMGain int
	Antenna int
	Running bool
}

// Fixture is an emulated DTM fixture. It is also an io.ReadWriteCloser that
// answers each 2-byte command written to it; a read with no pending answer
// returns nothing, like a UART read timeout.
type Fixture struct {
	mu  sync.Mutex
	air *Air

	upper   uint8
	phy     radio.Phy
	txPower int
	femGain int
	antenna int

	mode      mode
	tx        *transmission
	rxChannel int
	rxPhy     radio.Phy
	rxStart   time.Time

	in       []byte
	out      []byte
	commands []cmd.Word

	// Mute drops every answer.
	Mute bool
	// Reject, when set, makes the fixture answer a failure status to the
	// commands it returns true for.
	Reject func(cmd.Word) bool
}

// NewFixture returns a reset fixture on air.
func NewFixture(air *Air) *Fixture {
	return &Fixture{air: air, phy: radio.Phy1M}
}

// Handle executes one command and returns the fixture's answer.
func (f *Fixture) Handle(w cmd.Word) evt.Response {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.commands = append(f.commands, w)
	if f.Reject != nil && f.Reject(w) {
		return evt.Status{Success: false}
	}

	switch w.Type() {
	case cmd.TypeSetup:
		return f.setup(w)
	case cmd.TypeRX:
		if f.mode != idle {
			return evt.Status{Success: false}
		}
		f.mode = receiving
		f.rxChannel = int(w.Freq())
		f.rxPhy = f.phy
		f.rxStart = f.air.now()
	case cmd.TypeTX:
		if w.IsVendor() {
			return f.vendor(w)
		}
		if f.mode != idle {
			return evt.Status{Success: false}
		}
		f.mode = transmitting
		f.tx = f.air.begin(int(w.Freq()), f.phy, int(f.upper)<<6|int(w.Length()))
	case cmd.TypeEnd:
		return f.end()
	}
	return evt.Status{Success: true}
}

func (f *Fixture) setup(w cmd.Word) evt.Response {
	switch cmd.Setup(w.Freq()) {
	case cmd.SetupReset:
		f.stop()
		f.upper = 0
		f.phy = radio.Phy1M
	case cmd.SetupUpperLength:
		if w.Length() > 3 {
			return evt.Status{Success: false}
		}
		f.upper = w.Length()
	case cmd.SetupPhy:
		p, err := radio.PhyFromSetupParam(w.Param())
		if err != nil {
			return evt.Status{Success: false}
		}
		f.phy = p
	default:
		return evt.Status{Success: false}
	}
	return evt.Status{Success: true}
}

func (f *Fixture) vendor(w cmd.Word) evt.Response {
	switch cmd.Vendor(w.Length()) {
	case cmd.VendorCarrierTest:
		if f.mode != idle {
			return evt.Status{Success: false}
		}
		f.mode = carrier
	case cmd.VendorSetTxPower:
		f.txPower = w.VendorParam()
	case cmd.VendorFEMGainSet:
		g := w.VendorParam()
		if g < 1 || g > 31 {
			return evt.Status{Success: false}
		}
		f.femGain = g
	case cmd.VendorFEMAntennaSelect:
		f.antenna = w.VendorParam()
	default:
		return evt.Status{Success: false}
	}
	return evt.Status{Success: true}
}

// end answers the test end command. Like the firmware, it fails when no test
// is running.
func (f *Fixture) end() evt.Response {
	if f.mode == idle {
		return evt.Status{Success: false}
	}
	return evt.NewPacketReport(f.stop())
}

// stop ends the running test and returns the received packet count.
func (f *Fixture) stop() int {
	n := 0
	switch f.mode {
	case transmitting:
		f.air.finish(f.tx)
		f.tx = nil
	case receiving:
		n = f.air.received(f.rxChannel, f.rxPhy, f.rxStart)
	}
	f.mode = idle
	return n
}

// Snapshot returns the fixture configuration.
func (f *Fixture) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Snapshot{
		Upper:   f.upper,
		Phy:     f.phy,
		TxPower: f.txPower,
		FEMGain: f.femGain,
		Antenna: f.antenna,
		Running: f.mode != idle,
	}
}

// Commands returns every command received so far.
func (f *Fixture) Commands() []cmd.Word {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]cmd.Word(nil), f.commands...)
}

func (f *Fixture) Write(p []byte) (int, error) {
	f.mu.Lock()
	f.in = append(f.in, p...)
	var words []cmd.Word
	for len(f.in) >= cmd.Size {
		w, _ := cmd.Unmarshal(f.in)
		f.in = f.in[cmd.Size:]
		words = append(words, w)
	}
	f.mu.Unlock()

	for _, w := range words {
		rsp := f.Handle(w)

		f.mu.Lock()
		if !f.Mute {
			f.out = append(f.out, evt.Bytes(rsp)...)
		}
		f.mu.Unlock()
	}
	return len(p), nil
}

func (f *Fixture) Read(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := copy(p, f.out)
	f.out = f.out[n:]
	return n, nil
}

func (f *Fixture) Close() error {
	return nil
}

var _ io.ReadWriteCloser = (*Fixture)(nil)
