package dtm

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rigado/dtm/cmd"
	"github.com/rigado/dtm/evt"
	"github.com/rigado/dtm/radio"
	"github.com/rigado/dtm/sim"
	"github.com/rigado/dtm/timing"
)

type sleeper struct {
	calls []time.Duration
}

func (s *sleeper) sleep(d time.Duration) { s.calls = append(s.calls, d) }

func newSession(t *testing.T, f *sim.Fixture, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{OptTransport(f), OptName(t.Name())}, opts...)
	s, err := New(opts...)
	require.NoError(t, err)
	return s
}

func sent(f *sim.Fixture) int {
	return len(f.Commands())
}

func TestNew(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)
	defer s.Close()

	w := f.Commands()
	require.Len(t, w, 2)
	assert.Equal(t, cmd.Reset(), w[0])
	assert.Equal(t, cmd.SetupUpperLength, cmd.Setup(w[1].Freq()))
	assert.Equal(t, uint8(3), w[1].Length())

	st := s.State()
	assert.Equal(t, ModeIdle, st.Mode)
	assert.Equal(t, 255, st.PacketLength)
	assert.Equal(t, radio.Phy1M, st.Phy)
	assert.Equal(t, radio.AntennaExternal, st.Antenna)
	_, set := s.Region()
	assert.False(t, set)
	assert.Equal(t, uint8(3), f.Snapshot().Upper)
}

func TestNewConnectionFailure(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	f.Mute = true
	_, err := New(OptTransport(f))
	assert.True(t, errors.Is(err, ErrConnection), "%v", err)

	f = sim.NewFixture(sim.NewAir(nil))
	f.Reject = func(w cmd.Word) bool { return cmd.Setup(w.Freq()) == cmd.SetupUpperLength }
	_, err = New(OptTransport(f))
	assert.True(t, errors.Is(err, ErrConnection), "%v", err)

	_, err = New()
	assert.True(t, errors.Is(err, ErrConnection), "%v", err)

	_, err = New(OptTransportSocket("127.0.0.1:1", 10*time.Millisecond))
	assert.True(t, errors.Is(err, ErrConnection), "%v", err)
}

func TestChannels(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	for _, tc := range []struct{ logical, physical int }{
		{37, 0}, {10, 11}, {11, 13}, {9, 10}, {38, 12}, {39, 39},
	} {
		require.NoError(t, s.SetChannelLogical(tc.logical))
		assert.Equal(t, tc.physical, s.State().Channel, "logical %d", tc.logical)
		assert.Equal(t, tc.logical, s.ChannelLogical())
	}

	require.NoError(t, s.SetFrequency(2408))
	assert.Equal(t, 3, s.State().Channel)
	require.NoError(t, s.SetChannelPhysical(8))
	assert.Equal(t, 8, s.State().Channel)

	n := sent(f)
	for _, err := range []error{
		s.SetChannelPhysical(40),
		s.SetChannelPhysical(-1),
		s.SetChannelLogical(40),
		s.SetFrequency(2403),
		s.SetFrequency(2482),
	} {
		assert.True(t, errors.Is(err, ErrValidation), "%v", err)
	}
	assert.Equal(t, 8, s.State().Channel)
	assert.Equal(t, n, sent(f), "channel changes send nothing")
}

func TestPacketLength(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	require.NoError(t, s.SetPacketLength(73))
	assert.Equal(t, uint8(1), f.Snapshot().Upper)
	assert.Equal(t, 73, s.State().PacketLength)

	require.NoError(t, s.StartTxTest())
	w := f.Commands()[sent(f)-1]
	assert.Equal(t, cmd.TypeTX, w.Type())
	assert.Equal(t, uint8(9), w.Length())
	require.NoError(t, s.EndTest())

	n := sent(f)
	err := s.SetPacketLength(256)
	assert.True(t, errors.Is(err, ErrValidation))
	err = s.SetPacketLength(-1)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, n, sent(f))
	assert.Equal(t, 73, s.State().PacketLength)

	// reset clears the upper bits on the fixture
	require.NoError(t, s.Reset())
	assert.Equal(t, 9, s.State().PacketLength)
}

func TestPacketTypeAndPhy(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	err := s.SetPacketType(radio.PacketVendor)
	assert.True(t, errors.Is(err, ErrValidation))
	require.NoError(t, s.SetPacketType(radio.Packet10101010))

	require.NoError(t, s.SetPhyCodedS2())
	assert.Equal(t, radio.PhyCodedS2, s.State().Phy)
	assert.Equal(t, radio.PhyCodedS2, f.Snapshot().Phy)
	w := f.Commands()[sent(f)-1]
	assert.Equal(t, cmd.SetupPhy, cmd.Setup(w.Freq()))
	assert.Equal(t, uint8(19), w.Param())

	require.NoError(t, s.StartRxTest(WithFrequency(2440)))
	w = f.Commands()[sent(f)-1]
	assert.Equal(t, cmd.TypeRX, w.Type())
	assert.Equal(t, uint8(19), w.Freq())
	assert.Equal(t, radio.Packet10101010, w.Pkt())
	require.NoError(t, s.EndTest())

	err = s.SetPhy(radio.Phy(9))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestRegionIsWriteOnce(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	require.NoError(t, s.SetTxPower(-8))
	assert.Equal(t, -8, f.Snapshot().TxPower)

	require.NoError(t, s.ConfigureForNorthAmerica(false))
	r, set := s.Region()
	assert.True(t, set)
	assert.Equal(t, radio.RegionFCCIC, r)

	n := sent(f)
	err := s.ConfigureForAustraliaNZ(true)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.True(t, errors.Is(err, ErrRegionSet))
	assert.Equal(t, radio.RegionFCCIC, s.State().Region)
	assert.Equal(t, radio.AntennaExternal, s.State().Antenna)

	err = s.SetTxPower(-4)
	assert.True(t, errors.Is(err, ErrValidation))
	assert.Equal(t, -8, s.State().TxPower)
	assert.Equal(t, -8, f.Snapshot().TxPower)
	assert.Equal(t, n, sent(f), "rejected calls send nothing")
}

func TestConfigureForCE(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	require.NoError(t, s.ConfigureForCE())
	assert.Equal(t, -16, f.Snapshot().TxPower)
	assert.Equal(t, 23, f.Snapshot().FEMGain)
	assert.Equal(t, -16, s.State().TxPower)
	assert.Equal(t, 23, s.State().FEMGain)

	// CE has no table, starting a test doesn't change power
	n := sent(f)
	require.NoError(t, s.StartTxTest())
	assert.Equal(t, n+1, sent(f))

	err := s.ConfigureForRegion(radio.RegionUnset, false)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestTxPowerFromTable(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	require.NoError(t, s.ConfigureForNorthAmerica(false))
	require.NoError(t, s.StartTxTest(WithFrequency(2480)))
	assert.Equal(t, -7, f.Snapshot().TxPower)
	assert.Equal(t, ModeTxRunning, s.State().Mode)
	require.NoError(t, s.EndTest())

	require.NoError(t, s.SetPhy2M())
	require.NoError(t, s.StartTxTest(WithFrequency(2478)))
	assert.Equal(t, -12, f.Snapshot().TxPower)
	require.NoError(t, s.EndTest())
}

func TestTxPowerLevels(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	n := sent(f)
	for _, p := range []int{-9, 4, -40} {
		err := s.SetTxPower(p)
		assert.True(t, errors.Is(err, ErrValidation), "%d dBm: %v", p, err)
	}
	assert.Equal(t, n, sent(f))

	for _, g := range []int{0, 32} {
		err := s.SetFEMGain(g)
		assert.True(t, errors.Is(err, ErrValidation), "gain %d: %v", g, err)
	}

	require.NoError(t, s.SetTxPower(-20))
	assert.Equal(t, -20, f.Snapshot().TxPower)
	require.NoError(t, s.SelectAntenna(2))
	assert.Equal(t, 1, f.Snapshot().Antenna)
}

func TestTimedTxTest(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	sl := &sleeper{}
	s := newSession(t, f, OptSleep(sl.sleep))

	require.NoError(t, s.StartTxTest(WithFrequency(2440), WithDuration(time.Second)))
	assert.Equal(t, []time.Duration{time.Second}, sl.calls)
	assert.Equal(t, ModeIdle, s.State().Mode)
	assert.Equal(t, 400, s.PacketCount())
	assert.False(t, f.Snapshot().Running)
}

func TestTimedRxTest(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	sl := &sleeper{}
	s := newSession(t, f, OptSleep(sl.sleep))

	require.NoError(t, s.StartRxTest(WithDuration(500*time.Millisecond)))
	assert.Equal(t, ModeIdle, s.State().Mode)
	assert.Equal(t, 0, s.PacketCount())
	assert.Nil(t, s.LastAnomaly())
}

func TestRxCountsAtLeastTxEstimate(t *testing.T) {
	air := sim.NewAir(nil)
	rxf := sim.NewFixture(air)
	txf := sim.NewFixture(air)
	rx := newSession(t, rxf, OptName("rx"))
	tx := newSession(t, txf, OptName("tx"))

	for _, phy := range []radio.Phy{radio.Phy2M, radio.Phy1M} {
		require.NoError(t, rx.SetPhy(phy))
		require.NoError(t, tx.SetPhy(phy))

		require.NoError(t, rx.StartRxTest(WithFrequency(2440)))
		require.NoError(t, tx.StartTxTest(WithFrequency(2440), WithDuration(50*time.Millisecond)))
		require.NoError(t, rx.EndTest())

		assert.Equal(t, timing.EstimateCount(phy, 255, 50*time.Millisecond), tx.PacketCount())
		assert.True(t, tx.PacketCount() > 0)
		assert.True(t, rx.PacketCount() >= tx.PacketCount(), "%v: rx %d < tx %d", phy, rx.PacketCount(), tx.PacketCount())
	}

	// mismatched channel
	require.NoError(t, rx.StartRxTest(WithFrequency(2440)))
	require.NoError(t, tx.StartTxTest(WithFrequency(2480), WithDuration(20*time.Millisecond)))
	require.NoError(t, rx.EndTest())
	assert.Equal(t, 0, rx.PacketCount())
}

func TestNoResponse(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)
	f.Mute = true

	err := s.SetPhy2M()
	assert.True(t, errors.Is(err, ErrNoResponse), "%v", err)
	assert.Equal(t, radio.Phy1M, s.State().Phy)

	err = s.SetPacketLength(10)
	assert.True(t, errors.Is(err, ErrNoResponse))
	assert.Equal(t, 255, s.State().PacketLength)

	err = s.StartRxTest()
	assert.True(t, errors.Is(err, ErrNoResponse))
	assert.Equal(t, ModeIdle, s.State().Mode)

	// the fixture did start receiving, only the answer was lost
	f.Mute = false
	assert.True(t, f.Snapshot().Running)
	require.NoError(t, s.Reset())
	assert.False(t, f.Snapshot().Running)

	require.NoError(t, s.StartRxTest())
	assert.Nil(t, s.LastAnomaly())
	f.Mute = true
	err = s.EndTest()
	assert.True(t, errors.Is(err, ErrNoResponse))
	assert.Equal(t, ModeRxRunning, s.State().Mode)
}

func TestUnexpectedResponse(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	sl := &sleeper{}
	s := newSession(t, f, OptSleep(sl.sleep))

	f.Reject = func(w cmd.Word) bool { return w.Type() == cmd.TypeTX }
	require.NoError(t, s.StartTxTest(WithDuration(time.Second)))
	assert.True(t, errors.Is(s.LastAnomaly(), ErrUnexpectedResponse))
	assert.Equal(t, ModeIdle, s.State().Mode)
	assert.Empty(t, sl.calls)

	// an RX test answered with a status keeps no count
	f.Reject = func(w cmd.Word) bool { return w.Type() == cmd.TypeEnd }
	require.NoError(t, s.StartRxTest())
	require.NoError(t, s.EndTest())
	assert.True(t, errors.Is(s.LastAnomaly(), ErrUnexpectedResponse))
	assert.Equal(t, -1, s.PacketCount())
	assert.Equal(t, ModeIdle, s.State().Mode)
}

func TestStartWhileRunning(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	require.NoError(t, s.StartRxTest())
	n := sent(f)
	for _, err := range []error{
		s.StartTxTest(),
		s.StartRxTest(),
		s.TxConstantCarrier(),
		s.StartTxSweep(time.Millisecond, 0),
	} {
		assert.True(t, errors.Is(err, ErrValidation), "%v", err)
		assert.True(t, errors.Is(err, ErrTestRunning), "%v", err)
	}
	assert.Equal(t, n, sent(f))

	err := s.StartTxTest(WithFrequency(2401))
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestConstantCarrier(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	sl := &sleeper{}
	s := newSession(t, f, OptSleep(sl.sleep))

	require.NoError(t, s.TxConstantCarrier(WithFrequency(2440)))
	assert.Equal(t, ModeCarrierRunning, s.State().Mode)
	w := f.Commands()[sent(f)-1]
	assert.True(t, w.IsVendor())
	assert.Equal(t, cmd.VendorCarrierTest, cmd.Vendor(w.Length()))
	assert.Equal(t, 19, w.VendorParam())
	require.NoError(t, s.EndTest())
	assert.Equal(t, ModeIdle, s.State().Mode)

	require.NoError(t, s.TxConstantCarrier(WithDuration(3*time.Second)))
	assert.Equal(t, []time.Duration{3 * time.Second}, sl.calls)
	assert.Equal(t, ModeIdle, s.State().Mode)
}

func TestTxSweep(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	sl := &sleeper{}
	s := newSession(t, f, OptSleep(sl.sleep))

	n := sent(f)
	require.NoError(t, s.StartTxSweep(10*time.Millisecond, 1))
	assert.Len(t, sl.calls, 80)
	assert.Equal(t, n+160, sent(f))
	assert.Equal(t, 39, s.State().Channel)
	assert.Equal(t, ModeIdle, s.State().Mode)

	seen := map[uint8]int{}
	for _, w := range f.Commands()[n:] {
		if w.Type() == cmd.TypeTX {
			seen[w.Freq()]++
		}
	}
	assert.Len(t, seen, 40)
	for ch, c := range seen {
		assert.Equal(t, 2, c, "channel %d", ch)
	}

	// with a region each channel gets its power first
	require.NoError(t, s.ConfigureForAustraliaNZ(false))
	n = sent(f)
	require.NoError(t, s.StartTxSweep(time.Millisecond, 0))
	assert.Equal(t, n+120, sent(f))

	err := s.StartTxSweep(time.Millisecond, -1)
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestResult(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	sl := &sleeper{}
	s := newSession(t, f, OptSleep(sl.sleep))

	require.NoError(t, s.ConfigureForNorthAmerica(true))
	require.NoError(t, s.StartTxTest(WithFrequency(2440), WithDuration(time.Second)))

	r := s.Result("tx", time.Second)
	assert.Equal(t, t.Name(), r.DUT)
	assert.Equal(t, 19, r.Channel)
	assert.Equal(t, 2440, r.Frequency)
	assert.Equal(t, "PHY_1M", r.Phy)
	assert.Equal(t, "FCC_IC", r.Region)
	assert.Equal(t, "INTERNAL", r.Antenna)
	assert.Equal(t, 400, r.PacketCount)
	assert.Empty(t, r.Anomaly)
}

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) sleep(d time.Duration) { c.t = c.t.Add(d) }

// scripted answers each command with the next queued response.
type scripted struct {
	rsp []evt.Response
	out bytes.Buffer
}

func (s *scripted) Write(p []byte) (int, error) {
	for i := 0; i+cmd.Size <= len(p) && len(s.rsp) > 0; i += cmd.Size {
		s.out.Write(evt.Bytes(s.rsp[0]))
		s.rsp = s.rsp[1:]
	}
	return len(p), nil
}

func (s *scripted) Read(p []byte) (int, error) {
	n, _ := s.out.Read(p)
	return n, nil
}

func (s *scripted) Close() error { return nil }

func TestConfigureForCERetry(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	f.Mute = true
	err := s.ConfigureForCE()
	assert.True(t, errors.Is(err, ErrNoResponse), "%v", err)
	_, set := s.Region()
	assert.False(t, set, "a lost answer must not lock the region")

	f.Mute = false
	require.NoError(t, s.ConfigureForCE())
	r, set := s.Region()
	assert.True(t, set)
	assert.Equal(t, radio.RegionCE, r)
	assert.Equal(t, -16, f.Snapshot().TxPower)
	assert.Equal(t, 23, f.Snapshot().FEMGain)
}

func TestEndWithoutTest(t *testing.T) {
	c := &clock{t: time.Unix(1000, 0)}
	air := sim.NewAir(c.now)
	rxf := sim.NewFixture(air)
	txf := sim.NewFixture(air)
	rx := newSession(t, rxf, OptName("rx"), OptSleep(c.sleep))
	tx := newSession(t, txf, OptName("tx"))

	require.NoError(t, tx.StartTxTest(WithFrequency(2440)))
	require.NoError(t, rx.StartRxTest(WithFrequency(2440), WithDuration(time.Second)))
	assert.Equal(t, 400, rx.PacketCount())

	n := sent(rxf)
	err := rx.EndTest()
	assert.True(t, errors.Is(err, ErrValidation), "%v", err)
	assert.True(t, errors.Is(err, ErrNoTestRunning), "%v", err)
	assert.Equal(t, 400, rx.PacketCount(), "the count of the finished test is kept")
	assert.Equal(t, n, sent(rxf))

	require.NoError(t, tx.EndTest())
}

func TestResetStopsTest(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	require.NoError(t, s.StartTxTest())
	require.NoError(t, s.Reset())
	assert.Equal(t, ModeIdle, s.State().Mode)
	assert.False(t, f.Snapshot().Running)

	require.NoError(t, s.StartTxTest())
	assert.Equal(t, ModeTxRunning, s.State().Mode)
	assert.Nil(t, s.LastAnomaly())
}

func TestTxCountIsAnomaly(t *testing.T) {
	ok := evt.Status{Success: true}
	rw := &scripted{rsp: []evt.Response{ok, ok, ok, evt.NewPacketReport(5)}}
	s, err := New(OptTransport(rw))
	require.NoError(t, err)

	require.NoError(t, s.StartTxTest())
	require.NoError(t, s.EndTest())
	assert.True(t, errors.Is(s.LastAnomaly(), ErrUnexpectedResponse))
	assert.Equal(t, ModeIdle, s.State().Mode)
}

func TestAnomalyIsPerOperation(t *testing.T) {
	f := sim.NewFixture(sim.NewAir(nil))
	s := newSession(t, f)

	f.Reject = func(w cmd.Word) bool {
		return w.IsVendor() && cmd.Vendor(w.Length()) == cmd.VendorFEMGainSet
	}
	require.NoError(t, s.ConfigureForCE())
	assert.True(t, errors.Is(s.LastAnomaly(), ErrUnexpectedResponse))

	f.Reject = nil
	require.NoError(t, s.SetPhy2M())
	assert.Nil(t, s.LastAnomaly())
}
