package adapter

import (
	"fmt"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rickgao/chartflow/internal/dedup"
	"github.com/rickgao/chartflow/internal/host"
	"github.com/rickgao/chartflow/internal/metrics"
	"github.com/rickgao/chartflow/internal/model"
	"github.com/rickgao/chartflow/internal/normalize"
	"github.com/rickgao/chartflow/internal/orderflow"
)

// Sink receives accepted events. Write must not block; it returns false when
// the event was dropped.
type Sink interface {
	Write(ev model.Event) bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev model.Event) bool

// Write calls f(ev).
func (f SinkFunc) Write(ev model.Event) bool { return f(ev) }

// Stats contains adapter counters.
type Stats struct {
	Updates         int64
	Skipped         int64 // updates without a bar time
	Emitted         int64
	Suppressed      int64
	Forced          int64
	Dropped         int64 // rejected by the sink
	Gaps            int64
	ScaleAnomalies  int64
	OrderingFixes   int64
	TimeRegressions int64
	Panics          int64
}

// Adapter builds market events for one chart.
type Adapter struct {
	desc    Descriptor
	port    host.Port
	sink    Sink
	norm    *normalize.Normalizer
	state   *State
	metrics *metrics.Metrics
	logger  *slog.Logger

	builders []builder

	mu    sync.Mutex
	stats Stats
}

type builder struct {
	typ   model.EventType
	build func(u *update) []model.Payload
}

// New creates an Adapter. The descriptor should already be defaulted and
// validated. m may be nil.
func New(desc Descriptor, port host.Port, sink Sink, m *metrics.Metrics, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	a := &Adapter{
		desc:    desc,
		port:    port,
		sink:    sink,
		norm:    normalize.New(desc.Tick, desc.Multiplier, desc.Corridor),
		metrics: m,
		logger:  logger.With("source", desc.Source, "symbol", desc.Symbol),
	}
	a.state = newState(desc, barSource{a}, a.norm)

	all := map[model.EventType]func(u *update) []model.Payload{
		model.EventBar:           a.buildBar,
		model.EventDepth:         a.buildDepth,
		model.EventQuote:         a.buildQuote,
		model.EventTrade:         a.buildTrade,
		model.EventVWAP:          a.buildVWAP,
		model.EventValueArea:     a.buildValueArea(false),
		model.EventValueAreaPrev: a.buildValueArea(true),
		model.EventPreviousVWAP:  a.buildPreviousVWAP,
		model.EventOrderFlow:     a.buildOrderFlow,
		model.EventCumDelta:      a.buildCumDelta,
		model.EventVolatility:    a.buildVolatility,
		model.EventNamedLevel:    a.buildLevels,
		model.EventCorrelation:   a.buildCorrelation,
	}
	for _, t := range model.AllEventTypes {
		if desc.Enabled(t) {
			a.builders = append(a.builders, builder{typ: t, build: all[t]})
		}
	}
	return a
}

// Source returns the chart id.
func (a *Adapter) Source() string {
	return a.desc.Source
}

// Symbol returns the instrument symbol.
func (a *Adapter) Symbol() string {
	return a.desc.Symbol
}

// State returns the adapter's state. Callers must not use it concurrently
// with OnBarUpdate.
func (a *Adapter) State() *State {
	return a.state
}

// Stats returns a snapshot of the counters.
func (a *Adapter) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// update carries one OnBarUpdate call.
type update struct {
	bar    int
	ts     float64
	closed bool
	tally  Stats
}

// OnBarUpdate processes the host callback for barIndex. It always returns
// normally.
func (a *Adapter) OnBarUpdate(barIndex int) {
	u := &update{bar: barIndex}
	u.tally.Updates++

	defer func() {
		if r := recover(); r != nil {
			u.tally.Panics++
			a.metrics.RecordAnomaly(a.desc.Source, metrics.AnomalyPanic)
			a.logger.Error("adapter panic recovered",
				"bar", barIndex,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
		}
		a.merge(u.tally)
	}()

	ts, ok := a.read(u, SeriesTime)
	if !ok {
		u.tally.Skipped++
		return
	}
	u.ts = ts
	u.closed = a.port.BarHasClosed(barIndex)

	if a.state.observe(ts) {
		u.tally.TimeRegressions++
		a.logger.Debug("timestamp moved backwards", "bar", barIndex, "t", ts)
	}

	for _, b := range a.builders {
		for _, p := range b.build(u) {
			a.emit(u, p)
		}
	}
}

func (a *Adapter) emit(u *update, p model.Payload) {
	ev := model.Event{
		Timestamp: u.ts,
		Symbol:    a.desc.Symbol,
		SourceID:  a.desc.Source,
		BarIndex:  u.bar,
		Payload:   p,
	}

	d := a.state.Gate.Check(ev, u.closed)
	a.metrics.RecordGate(a.desc.Source, string(ev.Type()), d.String())
	if !d.Write() {
		u.tally.Suppressed++
		return
	}
	if d == dedup.WriteForced {
		u.tally.Forced++
	}
	if !a.sink.Write(ev) {
		u.tally.Dropped++
		return
	}
	u.tally.Emitted++
}

func (a *Adapter) merge(t Stats) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := &a.stats
	s.Updates += t.Updates
	s.Skipped += t.Skipped
	s.Emitted += t.Emitted
	s.Suppressed += t.Suppressed
	s.Forced += t.Forced
	s.Dropped += t.Dropped
	s.Gaps += t.Gaps
	s.ScaleAnomalies += t.ScaleAnomalies
	s.OrderingFixes += t.OrderingFixes
	s.TimeRegressions += t.TimeRegressions
	s.Panics += t.Panics
}

// -----------------------------------------------------------------------------
// Field readers
// -----------------------------------------------------------------------------

// read returns a finite host value, counting a gap otherwise.
func (a *Adapter) read(u *update, series string) (float64, bool) {
	v, ok := a.port.ReadSeries(a.desc.Source, a.desc.SeriesID(series), u.bar)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		u.tally.Gaps++
		a.metrics.RecordAnomaly(a.desc.Source, metrics.AnomalyGap)
		return 0, false
	}
	return v, true
}

// value returns an optional raw value.
func (a *Adapter) value(u *update, series string) *float64 {
	v, ok := a.read(u, series)
	if !ok {
		return nil
	}
	return &v
}

// price returns an optional normalized price, counting corridor misses.
func (a *Adapter) price(u *update, series string) *float64 {
	v, ok := a.read(u, series)
	if !ok {
		return nil
	}
	p := a.normalize(u, v)
	return &p
}

func (a *Adapter) normalize(u *update, raw float64) float64 {
	p := a.norm.Normalize(raw)
	if !a.norm.InCorridor(p) {
		u.tally.ScaleAnomalies++
		a.metrics.RecordAnomaly(a.desc.Source, metrics.AnomalyScale)
	}
	return p
}

func (a *Adapter) orderingFixed(u *update, n int) {
	if n == 0 {
		return
	}
	u.tally.OrderingFixes += int64(n)
	for i := 0; i < n; i++ {
		a.metrics.RecordAnomaly(a.desc.Source, metrics.AnomalyOrdering)
	}
}

func anySet(vs ...*float64) bool {
	for _, v := range vs {
		if v != nil {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Builders
// -----------------------------------------------------------------------------

func (a *Adapter) buildBar(u *update) []model.Payload {
	b := &model.BaseBar{
		Open:   a.price(u, SeriesOpen),
		High:   a.price(u, SeriesHigh),
		Low:    a.price(u, SeriesLow),
		Close:  a.price(u, SeriesClose),
		Volume: a.value(u, SeriesVolume),
		Closed: u.closed,
	}
	if !anySet(b.Open, b.High, b.Low, b.Close, b.Volume) {
		return nil
	}
	return []model.Payload{b}
}

func (a *Adapter) buildDepth(u *update) []model.Payload {
	d := &model.DepthLevel{
		Bids: a.readSide(u, "bid"),
		Asks: a.readSide(u, "ask"),
	}
	if len(d.Bids) == 0 && len(d.Asks) == 0 {
		return nil
	}
	d.Cap(a.desc.MaxDepthLevels)
	return []model.Payload{d}
}

// readSide reads book levels until the first missing price. A missing tail
// is the book's depth, not a gap.
func (a *Adapter) readSide(u *update, side string) []model.Level {
	var out []model.Level
	for k := 0; k < a.desc.MaxDepthLevels; k++ {
		priceID, sizeID := DepthSeries(side, k)
		raw, ok := a.port.ReadSeries(a.desc.Source, a.desc.SeriesID(priceID), u.bar)
		if !ok || math.IsNaN(raw) || math.IsInf(raw, 0) || raw <= 0 {
			break
		}
		size, ok := a.port.ReadSeries(a.desc.Source, a.desc.SeriesID(sizeID), u.bar)
		if !ok || math.IsNaN(size) || math.IsInf(size, 0) {
			size = 0
		}
		out = append(out, model.Level{Price: a.normalize(u, raw), Size: size})
	}
	return out
}

func (a *Adapter) buildQuote(u *update) []model.Payload {
	q := &model.Quote{
		Bid:     a.price(u, SeriesBid),
		Ask:     a.price(u, SeriesAsk),
		BidSize: a.value(u, SeriesBidSize),
		AskSize: a.value(u, SeriesAskSize),
	}
	if !anySet(q.Bid, q.Ask, q.BidSize, q.AskSize) {
		return nil
	}
	return []model.Payload{q}
}

func (a *Adapter) buildTrade(u *update) []model.Payload {
	t := &model.Trade{
		Price: a.price(u, SeriesLast),
		Size:  a.value(u, SeriesLastSize),
	}
	if !anySet(t.Price, t.Size) {
		return nil
	}
	return []model.Payload{t}
}

func (a *Adapter) buildVWAP(u *update) []model.Payload {
	v := &model.VwapSnapshot{VWAP: a.price(u, SeriesVWAP)}
	for i, k := range a.desc.VWAPBands {
		upperID, lowerID := BandSeries(i + 1)
		upper := a.price(u, upperID)
		lower := a.price(u, lowerID)
		if upper == nil || lower == nil {
			continue
		}
		v.Bands = append(v.Bands, model.Band{K: k, Upper: *upper, Lower: *lower})
	}
	if v.VWAP == nil && len(v.Bands) == 0 {
		return nil
	}
	a.orderingFixed(u, model.OrderBands(v.Bands))
	return []model.Payload{v}
}

func (a *Adapter) buildValueArea(previous bool) func(u *update) []model.Payload {
	poc, vah, val := SeriesPOC, SeriesVAH, SeriesVAL
	if previous {
		poc, vah, val = SeriesPrevPOC, SeriesPrevVAH, SeriesPrevVAL
	}
	return func(u *update) []model.Payload {
		v := &model.ValueAreaSnapshot{
			POC:      a.price(u, poc),
			VAH:      a.price(u, vah),
			VAL:      a.price(u, val),
			Previous: previous,
		}
		if !anySet(v.POC, v.VAH, v.VAL) {
			return nil
		}
		if v.Order() {
			a.orderingFixed(u, 1)
		}
		return []model.Payload{v}
	}
}

func (a *Adapter) buildPreviousVWAP(u *update) []model.Payload {
	day := time.Unix(0, int64(u.ts*float64(time.Second))).UTC().Format("20060102")
	snap := a.state.Session.Update(u.bar, day)
	if snap == nil {
		return nil
	}
	a.orderingFixed(u, model.OrderBands(snap.Bands))
	return []model.Payload{snap}
}

func (a *Adapter) buildOrderFlow(u *update) []model.Payload {
	ask, okAsk := a.read(u, SeriesAskVolume)
	bid, okBid := a.read(u, SeriesBidVolume)
	if !okAsk || !okBid {
		return nil
	}
	bar := orderflow.Build(orderflow.Inputs{
		AskVolume:   ask,
		BidVolume:   bid,
		Delta:       a.value(u, SeriesDelta),
		TotalVolume: a.value(u, SeriesTotalVolume),
	}, a.desc.Thresholds)
	return []model.Payload{&bar}
}

func (a *Adapter) buildCumDelta(u *update) []model.Payload {
	c := &model.CumulativeDelta{
		Value:    a.value(u, SeriesCumDelta),
		BarDelta: a.value(u, SeriesBarDelta),
	}
	if !anySet(c.Value, c.BarDelta) {
		return nil
	}
	return []model.Payload{c}
}

func (a *Adapter) buildVolatility(u *update) []model.Payload {
	v := &model.VolatilityIndexBar{
		Open:  a.value(u, SeriesVixOpen),
		High:  a.value(u, SeriesVixHigh),
		Low:   a.value(u, SeriesVixLow),
		Close: a.value(u, SeriesVixClose),
	}
	if !anySet(v.Open, v.High, v.Low, v.Close) {
		return nil
	}
	return []model.Payload{v}
}

func (a *Adapter) buildLevels(u *update) []model.Payload {
	var out []model.Payload
	for _, ex := range a.state.Levels {
		fam := ex.Family()
		values := make([]*float64, fam.Count)
		for i := range values {
			v, ok := a.port.ReadSeries(a.desc.Source, a.desc.SeriesID(fam.SeriesID(i)), u.bar)
			if ok {
				values[i] = &v
			}
		}
		for _, lvl := range ex.Extract(u.ts, values) {
			lvl.Price = a.normalize(u, lvl.Price)
			out = append(out, &lvl)
		}
	}
	return out
}

func (a *Adapter) buildCorrelation(u *update) []model.Payload {
	var out []model.Payload
	for _, peer := range a.desc.Peers {
		v, ok := a.read(u, CorrelationSeries(peer))
		if !ok {
			continue
		}
		out = append(out, &model.CorrelationSample{Peer: peer, Value: v})
	}
	return out
}

// barSource exposes the chart's bar history to the session aggregator.
type barSource struct {
	a *Adapter
}

func (s barSource) IsNewSessionBoundary(i int) bool {
	return s.a.port.IsNewSessionBoundary(i)
}

func (s barSource) Price(i int) (float64, bool) {
	return s.a.port.ReadSeries(s.a.desc.Source, s.a.desc.SeriesID(SeriesClose), i)
}

func (s barSource) Volume(i int) (float64, bool) {
	return s.a.port.ReadSeries(s.a.desc.Source, s.a.desc.SeriesID(SeriesVolume), i)
}
