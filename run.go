package dtm

import (
	"fmt"
	"time"

	"github.com/rigado/dtm/channel"
	"github.com/rigado/dtm/cmd"
	"github.com/rigado/dtm/evt"
	"github.com/rigado/dtm/timing"
)

type testParams struct {
	freq     int
	duration time.Duration
}

// A TestOption adjusts a single test start.
type TestOption func(*testParams)

// WithFrequency selects the frequency in MHz (2402-2480) before the test
// starts. The selection stays in effect afterwards.
func WithFrequency(mhz int) TestOption {
	return func(p *testParams) {
		p.freq = mhz
	}
}

// WithDuration holds the test for d and then ends it. The hold blocks and
// can't be cancelled.
func WithDuration(d time.Duration) TestOption {
	return func(p *testParams) {
		p.duration = d
	}
}

func (s *Session) prepare(op string, opts []TestOption) (testParams, error) {
	var p testParams
	for _, opt := range opts {
		opt(&p)
	}

	if s.state.Mode != ModeIdle {
		return p, s.invalid(op, ErrTestRunning)
	}
	s.anomaly = nil
	if p.freq != 0 {
		if err := s.SetFrequency(p.freq); err != nil {
			return p, err
		}
	}
	return p, nil
}

// StartTxTest starts a transmit test. With a region configured, the table
// power for the channel is applied first. After a timed test the packet count
// is estimated from the packet interval, since the fixture always reports
// zero for TX; the estimate ignores serial latency and undercounts.
func (s *Session) StartTxTest(opts ...TestOption) error {
	const op = "start tx test"
	s.log.Debug("Starting TX Test")

	p, err := s.prepare(op, opts)
	if err != nil {
		return err
	}

	started, err := s.startTx(op)
	if err != nil || !started || p.duration <= 0 {
		return err
	}

	if err := s.hold(p.duration); err != nil {
		return err
	}

	s.state.PacketCount = timing.EstimateCount(s.state.Phy, s.state.PacketLength, p.duration)
	s.log.Infof("Approximately %d packets of %d bytes were sent using %v",
		s.state.PacketCount, s.state.PacketLength, s.state.Phy)
	return nil
}

func (s *Session) startTx(op string) (bool, error) {
	s.state.Command = cmd.TypeTX
	if err := s.adjustPowerForRegion(); err != nil {
		return false, err
	}
	return s.start(op, cmd.TypeTX, ModeTxRunning)
}

func (s *Session) start(op string, t cmd.Type, m Mode) (bool, error) {
	w, err := cmd.Start(t, uint8(s.state.Channel), s.lower, s.state.PacketType)
	if err != nil {
		return false, s.invalid(op, err)
	}

	ok, err := s.expectSuccess(op, w)
	if err != nil || !ok {
		return false, err
	}
	s.state.Mode = m
	return true, nil
}

// StartRxTest starts a receive test. A timed test stores the received packet
// count reported by the fixture.
func (s *Session) StartRxTest(opts ...TestOption) error {
	const op = "start rx test"
	s.log.Debug("Starting RX Test")

	p, err := s.prepare(op, opts)
	if err != nil {
		return err
	}

	s.state.Command = cmd.TypeRX
	started, err := s.start(op, cmd.TypeRX, ModeRxRunning)
	if err != nil || !started || p.duration <= 0 {
		return err
	}
	return s.hold(p.duration)
}

// TxConstantCarrier starts an unmodulated carrier on the selected channel.
func (s *Session) TxConstantCarrier(opts ...TestOption) error {
	const op = "constant carrier"

	p, err := s.prepare(op, opts)
	if err != nil {
		return err
	}

	s.state.Command = cmd.TypeTX
	ok, err := s.sendVendor(op, cmd.VendorCarrierTest, s.state.Channel)
	if err != nil || !ok {
		return err
	}
	s.state.Mode = ModeCarrierRunning

	if p.duration <= 0 {
		return nil
	}
	return s.hold(p.duration)
}

// StartTxSweep transmits on every physical channel for perChannel, and does
// so repeat+1 times.
func (s *Session) StartTxSweep(perChannel time.Duration, repeat int) error {
	const op = "start tx sweep"
	s.log.Debug("Starting TX Sweep")

	if _, err := s.prepare(op, nil); err != nil {
		return err
	}
	if repeat < 0 {
		return s.invalid(op, fmt.Errorf("negative repeat count %d", repeat))
	}

	for r := 0; r <= repeat; r++ {
		for ch := channel.Min; ch <= channel.Max; ch++ {
			s.state.Channel = ch
			started, err := s.startTx(op)
			if err != nil {
				return err
			}
			if !started {
				continue
			}
			if err := s.hold(perChannel); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *Session) hold(d time.Duration) error {
	s.log.Debugf("holding test for %v", d)
	s.sleep(d)
	return s.endTest()
}

// EndTest ends the running test. An RX test answers with the received packet
// count, which is stored; a TX test answers with a zero count or a status.
// Without a running test nothing is sent and the last count is kept.
func (s *Session) EndTest() error {
	if s.state.Mode == ModeIdle {
		return s.invalid("end test", ErrNoTestRunning)
	}
	s.anomaly = nil
	return s.endTest()
}

func (s *Session) endTest() error {
	const op = "end test"

	rsp, err := s.exchange(op, cmd.End())
	if err != nil {
		s.log.Error(err)
		return err
	}
	s.state.Mode = ModeIdle

	switch r := rsp.(type) {
	case evt.PacketReport:
		switch {
		case s.state.Command == cmd.TypeRX:
			s.log.Infof("End Test packet count %d", r.Count)
			s.state.PacketCount = int(r.Count)
		case r.Count != 0:
			// a transmit test always reports 0
			s.unexpected(op, r, "packet count after a transmit test")
		default:
			s.log.Debug("End Test OK")
		}

	case evt.Status:
		switch {
		case !r.Success:
			s.unexpected(op, r, "End Test Failed")
		case s.state.Command == cmd.TypeRX:
			s.unexpected(op, r, "Unexpected response for End Test")
		default:
			s.log.Debug("End Test OK")
		}
	}
	return nil
}
