// Package sim emulates DTM fixtures. Fixtures that share an Air hear each
// other: an RX test counts the packets of every overlapping TX test on the same
// channel and PHY.
package sim

import (
	"sync"
	"time"

	"github.com/rigado/dtm/radio"
	"github.com/rigado/dtm/timing"
)

type transmission struct {
	channel int
	phy     radio.Phy
	length  int
	start   time.Time
	end     time.Time
}

// Air is the medium shared by emulated fixtures.
type Air struct {
	mu  sync.Mutex
	now func() time.Time
	txs []*transmission
}

// NewAir returns an empty medium. A nil clock uses time.Now.
func NewAir(now func() time.Time) *Air {
	if now == nil {
		now = time.Now
	}
	return &Air{now: now}
}

func (a *Air) begin(ch int, phy radio.Phy, length int) *transmission {
	a.mu.Lock()
	defer a.mu.Unlock()

	t := &transmission{channel: ch, phy: phy, length: length, start: a.now()}
	a.txs = append(a.txs, t)
	return t
}

func (a *Air) finish(t *transmission) {
	a.mu.Lock()
	defer a.mu.Unlock()
	t.end = a.now()
}

// received counts the packets a receiver on ch and phy heard since start.
func (a *Air) received(ch int, phy radio.Phy, start time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	end := a.now()
	n := 0
	for _, t := range a.txs {
		if t.channel != ch || t.phy != phy {
			continue
		}
		from, to := t.start, t.end
		if to.IsZero() {
			to = end
		}
		if from.Before(start) {
			from = start
		}
		if to.After(end) {
			to = end
		}
		if !to.After(from) {
			continue
		}
		n += timing.EstimateCount(t.phy, t.length, to.Sub(from))
	}
	return n
}
