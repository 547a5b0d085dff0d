package dtm

import (
	"time"

	"github.com/rigado/dtm/channel"
)

// ResultStore keeps finished test results per DUT.
type ResultStore interface {
	Store(Result) error
	Load(dut string) ([]Result, error)
	Clear() error
}

// Result is the record of one finished test.
type Result struct {
	Time         time.Time     `json:"time"`
	DUT          string        `json:"dut"`
	Test         string        `json:"test"`
	Duration     time.Duration `json:"duration"`
	Channel      int           `json:"channel"`
	Frequency    int           `json:"frequency"`
	Phy          string        `json:"phy"`
	PacketType   string        `json:"packet_type"`
	PacketLength int           `json:"packet_length"`
	Region       string        `json:"region"`
	Antenna      string        `json:"antenna"`
	TxPower      int           `json:"tx_power"`
	FEMGain      int           `json:"fem_gain,omitempty"`
	PacketCount  int           `json:"packet_count"`
	Anomaly      string        `json:"anomaly,omitempty"`
}

// Result records the current configuration and packet count under test,
// typically right after a timed test ended.
func (s *Session) Result(test string, d time.Duration) Result {
	f, _ := channel.Frequency(s.state.Channel)
	r := Result{
		Time:         time.Now(),
		DUT:          s.name,
		Test:         test,
		Duration:     d,
		Channel:      s.state.Channel,
		Frequency:    f,
		Phy:          s.state.Phy.String(),
		PacketType:   s.state.PacketType.String(),
		PacketLength: s.state.PacketLength,
		Region:       s.state.Region.String(),
		Antenna:      s.state.Antenna.String(),
		TxPower:      s.state.TxPower,
		FEMGain:      s.state.FEMGain,
		PacketCount:  s.state.PacketCount,
	}
	if s.anomaly != nil {
		r.Anomaly = s.anomaly.Error()
	}
	return r
}
