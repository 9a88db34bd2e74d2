package session

import (
	"math"
	"sort"

	"github.com/rickgao/chartflow/internal/model"
)

// Config bounds the session scan.
type Config struct {
	MaxLookback    int       `yaml:"max_lookback"`
	FallbackWindow int       `yaml:"fallback_window"`
	BandMultiples  []float64 `yaml:"band_multiples"`
}

// DefaultConfig returns defaults sized for one-minute bars.
func DefaultConfig() Config {
	return Config{
		MaxLookback:    2000,
		FallbackWindow: 390,
		BandMultiples:  []float64{1, 2},
	}
}

// Span returns how many trailing bars Compute may read: the current and the
// previous session scans, each bounded by the larger of MaxLookback and
// FallbackWindow, plus the bar before each scan.
func (c Config) Span() int {
	w := c.MaxLookback
	if c.FallbackWindow > w {
		w = c.FallbackWindow
	}
	return 2*w + 2
}

// Source is the bar history the aggregator reads.
type Source interface {
	IsNewSessionBoundary(barIndex int) bool
	Price(barIndex int) (float64, bool)
	Volume(barIndex int) (float64, bool)
}

// Normalizer corrects node prices and rounds outputs to tick.
type Normalizer interface {
	Normalize(raw float64) float64
	Round(v float64) float64
}

// Window is an inclusive bar range.
type Window struct {
	From     int
	To       int
	Degraded bool // no boundary within the lookback bound
}

// Profile is the volume-at-price accumulation over a window.
type Profile struct {
	SumV   float64
	SumPV  float64
	SumP2V float64
	Nodes  int
}

// Stats holds aggregator counters.
type Stats struct {
	Runs      int64
	Throttled int64
	Degraded  int64
	Empty     int64
	NoWindow  int64
}

// Aggregator is owned by one adapter and is not safe for concurrent use.
type Aggregator struct {
	cfg  Config
	src  Source
	norm Normalizer

	ran       bool
	lastIndex int
	lastDay   string

	stats Stats
}

// New creates an Aggregator. norm may be nil.
func New(cfg Config, src Source, norm Normalizer) *Aggregator {
	if cfg.MaxLookback <= 0 {
		cfg.MaxLookback = DefaultConfig().MaxLookback
	}
	if cfg.FallbackWindow <= 0 {
		cfg.FallbackWindow = DefaultConfig().FallbackWindow
	}
	return &Aggregator{cfg: cfg, src: src, norm: norm}
}

// Update recomputes the previous-session VWAP for barIndex if it is due.
// day identifies the trading day of the bar. It returns nil when throttled,
// when there is no previous window, or when the window has no volume.
func (a *Aggregator) Update(barIndex int, day string) *model.PreviousVwapSnapshot {
	if a.ran && barIndex == a.lastIndex && day == a.lastDay {
		a.stats.Throttled++
		return nil
	}
	a.ran = true
	a.lastIndex = barIndex
	a.lastDay = day
	a.stats.Runs++

	return a.Compute(barIndex)
}

// Compute returns the previous-session snapshot for barIndex without
// throttling.
func (a *Aggregator) Compute(barIndex int) *model.PreviousVwapSnapshot {
	current := a.sessionStart(barIndex)
	if current.From <= 0 {
		a.stats.NoWindow++
		return nil
	}
	prev := a.sessionStart(current.From - 1)
	if prev.Degraded {
		a.stats.Degraded++
	}

	p := a.profile(prev)
	if p.SumV == 0 {
		a.stats.Empty++
		return nil
	}

	mean := p.SumPV / p.SumV
	variance := p.SumP2V/p.SumV - mean*mean
	if variance < 0 {
		variance = 0
	}
	sd := math.Sqrt(variance)

	snap := &model.PreviousVwapSnapshot{
		VWAP:     a.round(mean),
		Volume:   p.SumV,
		From:     prev.From,
		To:       prev.To,
		Degraded: prev.Degraded,
	}
	for _, k := range a.cfg.BandMultiples {
		snap.Bands = append(snap.Bands, model.Band{
			K:     k,
			Upper: a.round(mean + k*sd),
			Lower: a.round(mean - k*sd),
		})
	}
	return snap
}

// Stats returns a snapshot of the counters.
func (a *Aggregator) Stats() Stats {
	return a.stats
}

// sessionStart scans backward from end for a session boundary, at most
// MaxLookback bars. The returned window ends at end.
func (a *Aggregator) sessionStart(end int) Window {
	floor := end - a.cfg.MaxLookback
	if floor < 0 {
		floor = 0
	}
	for i := end; i >= floor; i-- {
		if a.src.IsNewSessionBoundary(i) {
			return Window{From: i, To: end}
		}
	}
	from := end - a.cfg.FallbackWindow + 1
	if from < 0 {
		from = 0
	}
	return Window{From: from, To: end, Degraded: true}
}

// profile accumulates volume at price over w. Nodes are summed in price
// order so the result does not depend on map iteration.
func (a *Aggregator) profile(w Window) Profile {
	nodes := make(map[float64]float64)
	for i := w.From; i <= w.To; i++ {
		price, ok := a.src.Price(i)
		if !ok || math.IsNaN(price) || math.IsInf(price, 0) {
			continue
		}
		vol, ok := a.src.Volume(i)
		if !ok || !(vol > 0) || math.IsInf(vol, 0) {
			continue
		}
		if a.norm != nil {
			price = a.norm.Normalize(price)
		}
		nodes[price] += vol
	}

	prices := make([]float64, 0, len(nodes))
	for p := range nodes {
		prices = append(prices, p)
	}
	sort.Float64s(prices)

	var out Profile
	for _, p := range prices {
		v := nodes[p]
		out.SumV += v
		out.SumPV += p * v
		out.SumP2V += p * p * v
	}
	out.Nodes = len(prices)
	return out
}

func (a *Aggregator) round(v float64) float64 {
	if a.norm == nil {
		return v
	}
	return a.norm.Round(v)
}
