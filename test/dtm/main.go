package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/rigado/dtm"
	"github.com/rigado/dtm/examples/lib/config"
	"github.com/rigado/dtm/examples/lib/dev"
	"github.com/rigado/dtm/radio"
	"github.com/rigado/dtm/report"
)

var (
	cfgFile = flag.String("config", "", "YAML configuration file")
	dut     = flag.String("dut", "", "fixture port or host:port")
	dut2    = flag.String("dut2", "", "second fixture, the transmitter in pair tests")
	test    = flag.String("test", "", "the test to be run")
	scale   = flag.Float64("scale", 1, "multiplies every test duration")
)

var (
	cfg   *config.Config
	store dtm.ResultStore
	fails int
)

func main() {
	flag.Parse()

	var err error
	cfg, err = config.Load(*cfgFile)
	if err != nil {
		log.Fatal(err)
	}
	if cfg.Log.File == "" {
		cfg.Log.File = "dtm-test.log"
	}
	dev.Setup(cfg)
	store = report.New(cfg.Results)

	if len(*test) == 0 {
		fmt.Println("no test specified! use --test")
		fmt.Println("available tests are `api`, `na`, `rxcount`, and `mismatch`")
		return
	}

	if err := runTest(*test); err != nil {
		log.Fatalf("%s: %v", *test, err)
	}
	if fails > 0 {
		log.Printf("%s: %d checks failed", *test, fails)
		os.Exit(1)
	}
	log.Printf("%s: passed", *test)
}

func runTest(test string) error {
	switch test {
	case "api":
		return runAPITest()
	case "na":
		return runNorthAmericaTest()
	case "rxcount":
		return runRxCountTest()
	case "mismatch":
		return runMismatchTest()
	}
	return fmt.Errorf("unknown test %q", test)
}

func open(port string) (*dtm.Session, error) {
	if port == "" {
		port = cfg.Serial.Port
	}
	var extra []dtm.Option
	if strings.Contains(port, ":") {
		extra = append(extra, dtm.OptTransportSocket(port, cfg.SocketTimeout()))
	}
	return dev.Open(cfg, port, extra...)
}

func seconds(s float64) time.Duration {
	return time.Duration(s * *scale * float64(time.Second))
}

func check(ok bool, format string, args ...interface{}) {
	if !ok {
		fails++
		log.Printf("FAIL: "+format, args...)
	}
}

// steps runs fns in order and stops at the first error.
func steps(fns ...func() error) error {
	for i, fn := range fns {
		if err := fn(); err != nil {
			return errors.Wrapf(err, "step %d", i)
		}
	}
	return nil
}

func runAPITest() error {
	s, err := open(*dut)
	if err != nil {
		return err
	}
	defer s.Close()

	err = steps(
		s.Reset,
		func() error { return s.StartTxTest() },
		s.EndTest,
		func() error { return s.StartRxTest() },
		s.EndTest,
		func() error { return s.StartTxSweep(seconds(0.2), 0) },
		func() error { return s.StartTxTest(dtm.WithFrequency(2480)) },
		s.EndTest,
		func() error { return s.StartTxTest(dtm.WithFrequency(2440), dtm.WithDuration(seconds(1))) },
		func() error { return s.StartTxTest(dtm.WithFrequency(2402), dtm.WithDuration(seconds(1.9))) },
		func() error { return s.StartRxTest(dtm.WithFrequency(2480)) },
		s.EndTest,
		func() error { return s.StartRxTest(dtm.WithDuration(seconds(1))) },
		func() error { return s.StartRxTest(dtm.WithFrequency(2440), dtm.WithDuration(seconds(2.2))) },
		func() error { return s.TxConstantCarrier() },
		s.EndTest,
		func() error { return s.TxConstantCarrier(dtm.WithFrequency(2440), dtm.WithDuration(seconds(3))) },
	)
	if err != nil {
		return err
	}

	if err := s.SetFrequency(2408); err != nil {
		return err
	}
	check(s.State().Channel == 3, "2408 MHz is channel %d", s.State().Channel)
	if err := s.SetChannelPhysical(8); err != nil {
		return err
	}
	check(s.State().Channel == 8, "physical 8 is channel %d", s.State().Channel)

	for _, tc := range [][2]int{{9, 10}, {37, 0}, {38, 12}, {39, 39}, {10, 11}, {11, 13}} {
		if err := s.SetChannelLogical(tc[0]); err != nil {
			return err
		}
		check(s.State().Channel == tc[1], "logical %d is physical %d, want %d", tc[0], s.State().Channel, tc[1])
	}

	for _, pt := range []radio.PacketType{radio.PacketPRBS9, radio.Packet11110000, radio.Packet10101010} {
		if err := s.SetPacketType(pt); err != nil {
			return err
		}
		d := seconds(0.5)
		if err := s.StartTxTest(dtm.WithDuration(d)); err != nil {
			return err
		}
		record(s, "api-"+pt.String(), d)
	}

	check(s.LastAnomaly() == nil, "anomaly: %v", s.LastAnomaly())
	return nil
}

func runNorthAmericaTest() error {
	s, err := open(*dut)
	if err != nil {
		return err
	}
	defer s.Close()

	err = steps(
		func() error { return s.ConfigureForNorthAmerica(false) },
		func() error { return s.StartTxSweep(seconds(0.1), 0) },
		func() error { return s.StartTxTest(dtm.WithFrequency(2440)) },
		s.EndTest,
	)
	if err != nil {
		return err
	}

	before := s.State().TxPower
	err = s.SetTxPower(0)
	check(errors.Is(err, dtm.ErrValidation), "tx power accepted with a region: %v", err)
	check(s.State().TxPower == before, "tx power changed to %d", s.State().TxPower)

	err = s.ConfigureForCE()
	check(errors.Is(err, dtm.ErrValidation), "second region accepted: %v", err)
	r, _ := s.Region()
	check(r == radio.RegionFCCIC, "region changed to %v", r)
	return nil
}

type pairStep struct {
	phy    radio.Phy
	rxFreq int
	txFreq int
	rxLen  int
	txLen  int
	d      float64
	// zero means the settings don't match and nothing may be received
	zero bool
}

func runPair(plan []pairStep) error {
	rx, err := open(*dut)
	if err != nil {
		return errors.Wrap(err, "rx")
	}
	defer rx.Close()
	tx, err := open(*dut2)
	if err != nil {
		return errors.Wrap(err, "tx")
	}
	defer tx.Close()

	for _, st := range plan {
		txPhy := st.phy
		if st.zero && st.rxFreq == st.txFreq {
			txPhy = radio.PhyCodedS8
		}
		if err := rx.SetPacketLength(st.rxLen); err != nil {
			return err
		}
		if err := tx.SetPacketLength(st.txLen); err != nil {
			return err
		}
		if err := rx.SetPhy(st.phy); err != nil {
			return err
		}
		if err := rx.StartRxTest(dtm.WithFrequency(st.rxFreq)); err != nil {
			return err
		}
		if err := tx.SetPhy(txPhy); err != nil {
			return err
		}
		d := seconds(st.d)
		if err := tx.StartTxTest(dtm.WithFrequency(st.txFreq), dtm.WithDuration(d)); err != nil {
			return err
		}
		if err := rx.EndTest(); err != nil {
			return err
		}

		record(rx, "rx", d)
		record(tx, "tx", d)
		if st.zero {
			check(rx.PacketCount() == 0, "%v: received %d with mismatched settings", st.phy, rx.PacketCount())
		} else {
			check(rx.PacketCount() >= tx.PacketCount(), "%v len %d: received %d < sent %d",
				st.phy, st.txLen, rx.PacketCount(), tx.PacketCount())
		}
	}
	return nil
}

// Received packets must be at least the estimate: serial latency keeps the
// transmitter running longer than the requested duration.
func runRxCountTest() error {
	var plan []pairStep
	for _, l := range []int{32, 73, 255} {
		plan = append(plan,
			pairStep{phy: radio.Phy2M, rxFreq: 2440, txFreq: 2440, rxLen: l, txLen: l, d: 2},
			pairStep{phy: radio.PhyCodedS2, rxFreq: 2480, txFreq: 2480, rxLen: l, txLen: l, d: 2},
			pairStep{phy: radio.Phy1M, rxFreq: 2480, txFreq: 2480, rxLen: l, txLen: l, d: 2},
			pairStep{phy: radio.PhyCodedS8, rxFreq: 2402, txFreq: 2402, rxLen: l, txLen: l, d: 2},
		)
	}
	return runPair(plan)
}

func runMismatchTest() error {
	return runPair([]pairStep{
		{phy: radio.Phy1M, rxFreq: 2402, txFreq: 2402, rxLen: 255, txLen: 255, d: 1.2},
		{phy: radio.Phy1M, rxFreq: 2402, txFreq: 2402, rxLen: 255, txLen: 255, d: 2, zero: true},
		{phy: radio.PhyCodedS8, rxFreq: 2402, txFreq: 2402, rxLen: 255, txLen: 255, d: 2},
		{phy: radio.Phy2M, rxFreq: 2440, txFreq: 2480, rxLen: 255, txLen: 255, d: 2, zero: true},
		// the receiver's packet length doesn't matter
		{phy: radio.Phy2M, rxFreq: 2440, txFreq: 2440, rxLen: 20, txLen: 64, d: 2},
	})
}

func record(s *dtm.Session, test string, d time.Duration) {
	if err := store.Store(s.Result(test, d)); err != nil {
		log.Printf("can't record result: %v", err)
	}
}
