package adapter

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/rickgao/chartflow/internal/levels"
	"github.com/rickgao/chartflow/internal/model"
	"github.com/rickgao/chartflow/internal/normalize"
	"github.com/rickgao/chartflow/internal/orderflow"
	"github.com/rickgao/chartflow/internal/session"
)

// Logical series names read from the host. Descriptor.Series may alias any
// of them to a host-specific id.
const (
	SeriesTime   = "time"
	SeriesOpen   = "open"
	SeriesHigh   = "high"
	SeriesLow    = "low"
	SeriesClose  = "close"
	SeriesVolume = "volume"

	SeriesBid      = "bid"
	SeriesAsk      = "ask"
	SeriesBidSize  = "bid_size"
	SeriesAskSize  = "ask_size"
	SeriesLast     = "last"
	SeriesLastSize = "last_size"

	SeriesVWAP = "vwap"

	SeriesPOC     = "poc"
	SeriesVAH     = "vah"
	SeriesVAL     = "val"
	SeriesPrevPOC = "prev_poc"
	SeriesPrevVAH = "prev_vah"
	SeriesPrevVAL = "prev_val"

	SeriesAskVolume   = "ask_volume"
	SeriesBidVolume   = "bid_volume"
	SeriesDelta       = "delta"
	SeriesTotalVolume = "total_volume"

	SeriesCumDelta = "cum_delta"
	SeriesBarDelta = "bar_delta"

	SeriesVixOpen  = "vix_open"
	SeriesVixHigh  = "vix_high"
	SeriesVixLow   = "vix_low"
	SeriesVixClose = "vix_close"
)

// DepthSeries returns the price and size series of book level k on one side.
func DepthSeries(side string, k int) (price, size string) {
	return side + "_price_" + strconv.Itoa(k), side + "_size_" + strconv.Itoa(k)
}

// BandSeries returns the upper and lower series of the n-th VWAP band
// (1-based, matching Descriptor.VWAPBands order).
func BandSeries(n int) (upper, lower string) {
	return "vwap_upper_" + strconv.Itoa(n), "vwap_lower_" + strconv.Itoa(n)
}

// CorrelationSeries returns the series carrying the correlation to peer.
func CorrelationSeries(peer string) string {
	return "corr_" + peer
}

// DefaultMaxDepthLevels caps depth snapshots when a descriptor sets none.
const DefaultMaxDepthLevels = 10

var (
	ErrMissingSource   = errors.New("source id is required")
	ErrInvalidSource   = errors.New("source id may only contain letters, digits, '-', '_' and '.'")
	ErrReservedSource  = errors.New("source id is reserved for consolidated output")
	ErrMissingSymbol   = errors.New("symbol is required")
	ErrUnknownType     = errors.New("unknown event type")
	ErrInvalidTick     = errors.New("tick size must not be negative")
	ErrInvalidFamily   = errors.New("level family needs a name and a positive count")
	ErrInvalidCorridor = errors.New("corridor min must not exceed max")
)

// ReservedSource prefixes consolidated output files.
const ReservedSource = "unified"

var sourceIDPattern = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// Descriptor parameterizes an Adapter for one chart.
type Descriptor struct {
	Source         string               `yaml:"id"`
	Symbol         string               `yaml:"symbol"`
	Tick           float64              `yaml:"tick_size"`
	Multiplier     float64              `yaml:"multiplier"`
	Corridor       normalize.Corridor   `yaml:"corridor"`
	Types          []model.EventType    `yaml:"types"`  // empty enables every type
	Series         map[string]string    `yaml:"series"` // logical name -> host series id
	Families       []levels.Family      `yaml:"families"`
	Thresholds     orderflow.Thresholds `yaml:"thresholds"`
	VWAPBands      []float64            `yaml:"vwap_bands"`
	MaxDepthLevels int                  `yaml:"max_depth_levels"`
	Session        session.Config       `yaml:"session"`
	Peers          []string             `yaml:"peers"`
}

// SeriesID resolves a logical series name through the alias table.
func (d *Descriptor) SeriesID(name string) string {
	if id, ok := d.Series[name]; ok && id != "" {
		return id
	}
	return name
}

// Enabled reports whether t is emitted by this source.
func (d *Descriptor) Enabled(t model.EventType) bool {
	if len(d.Types) == 0 {
		return true
	}
	for _, e := range d.Types {
		if e == t {
			return true
		}
	}
	return false
}

// ApplyDefaults fills zero values.
func (d *Descriptor) ApplyDefaults() {
	if d.Multiplier == 0 {
		d.Multiplier = 1
	}
	if d.MaxDepthLevels == 0 {
		d.MaxDepthLevels = DefaultMaxDepthLevels
	}
	th := orderflow.DefaultThresholds()
	if d.Thresholds.MinTotalVolume == 0 {
		d.Thresholds.MinTotalVolume = th.MinTotalVolume
	}
	if d.Thresholds.MinAbsDeltaRatio == 0 {
		d.Thresholds.MinAbsDeltaRatio = th.MinAbsDeltaRatio
	}
	if d.Thresholds.MinSideRatio == 0 {
		d.Thresholds.MinSideRatio = th.MinSideRatio
	}
	def := session.DefaultConfig()
	if d.Session.MaxLookback == 0 {
		d.Session.MaxLookback = def.MaxLookback
	}
	if d.Session.FallbackWindow == 0 {
		d.Session.FallbackWindow = def.FallbackWindow
	}
	if len(d.Session.BandMultiples) == 0 {
		d.Session.BandMultiples = def.BandMultiples
	}
}

// Validate checks the descriptor.
func (d *Descriptor) Validate() error {
	if d.Source == "" {
		return ErrMissingSource
	}
	if !sourceIDPattern.MatchString(d.Source) {
		return fmt.Errorf("%w: %q", ErrInvalidSource, d.Source)
	}
	if d.Source == ReservedSource || strings.HasPrefix(d.Source, ReservedSource+"_") {
		return fmt.Errorf("%w: %q", ErrReservedSource, d.Source)
	}
	if d.Symbol == "" {
		return ErrMissingSymbol
	}
	if d.Tick < 0 {
		return ErrInvalidTick
	}
	if d.Corridor.Max > 0 && d.Corridor.Min > d.Corridor.Max {
		return ErrInvalidCorridor
	}
	for _, t := range d.Types {
		if !t.Valid() {
			return fmt.Errorf("%w: %q", ErrUnknownType, t)
		}
	}
	for i, f := range d.Families {
		if f.Name == "" || f.Count <= 0 {
			return fmt.Errorf("families[%d]: %w", i, ErrInvalidFamily)
		}
	}
	return nil
}
