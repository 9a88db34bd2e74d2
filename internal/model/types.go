package model

// EventType is the wire name of a MarketEvent variant.
type EventType string

const (
	EventBar           EventType = "bar"
	EventDepth         EventType = "depth"
	EventQuote         EventType = "quote"
	EventTrade         EventType = "trade"
	EventVWAP          EventType = "vwap"
	EventValueArea     EventType = "vva"
	EventValueAreaPrev EventType = "pvva"
	EventPreviousVWAP  EventType = "pvwap"
	EventOrderFlow     EventType = "orderflow"
	EventCumDelta      EventType = "cumdelta"
	EventVolatility    EventType = "vix"
	EventNamedLevel    EventType = "level"
	EventCorrelation   EventType = "corr"
)

// AllEventTypes lists every variant in a stable order.
var AllEventTypes = []EventType{
	EventBar,
	EventDepth,
	EventQuote,
	EventTrade,
	EventVWAP,
	EventValueArea,
	EventValueAreaPrev,
	EventPreviousVWAP,
	EventOrderFlow,
	EventCumDelta,
	EventVolatility,
	EventNamedLevel,
	EventCorrelation,
}

// Valid reports whether t is a known variant.
func (t EventType) Valid() bool {
	for _, known := range AllEventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Event
// -----------------------------------------------------------------------------

// Event is one normalized MarketEvent.
type Event struct {
	Timestamp float64  // Fractional epoch seconds
	Symbol    string   // Instrument symbol
	SourceID  string   // Chart/feed that produced the event
	BarIndex  int      // Sequence number within the source
	BucketT   *float64 // Alignment timestamp, unified stream only
	Payload   Payload
}

// Type returns the variant name, or "" if the payload is nil.
func (e Event) Type() EventType {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Kind()
}

// Discriminator separates independent records sharing one event type
// (level names, correlation peers). Empty for all other variants.
func (e Event) Discriminator() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.Discriminator()
}

// Payload is implemented by pointers to every variant struct.
type Payload interface {
	Kind() EventType
	Discriminator() string
}

// NewPayload returns an empty payload for the given type.
func NewPayload(t EventType) (Payload, bool) {
	switch t {
	case EventBar:
		return &BaseBar{}, true
	case EventDepth:
		return &DepthLevel{}, true
	case EventQuote:
		return &Quote{}, true
	case EventTrade:
		return &Trade{}, true
	case EventVWAP:
		return &VwapSnapshot{}, true
	case EventValueArea:
		return &ValueAreaSnapshot{}, true
	case EventValueAreaPrev:
		return &ValueAreaSnapshot{Previous: true}, true
	case EventPreviousVWAP:
		return &PreviousVwapSnapshot{}, true
	case EventOrderFlow:
		return &OrderFlowBar{}, true
	case EventCumDelta:
		return &CumulativeDelta{}, true
	case EventVolatility:
		return &VolatilityIndexBar{}, true
	case EventNamedLevel:
		return &NamedLevel{}, true
	case EventCorrelation:
		return &CorrelationSample{}, true
	}
	return nil, false
}

// F returns a pointer to v, for optional fields.
func F(v float64) *float64 {
	return &v
}

// -----------------------------------------------------------------------------
// Variants
// -----------------------------------------------------------------------------

// BaseBar is an OHLCV bar.
type BaseBar struct {
	Open   *float64 `json:"open,omitempty"`
	High   *float64 `json:"high,omitempty"`
	Low    *float64 `json:"low,omitempty"`
	Close  *float64 `json:"close,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
	Closed bool     `json:"closed,omitempty"` // true on the bar's closing snapshot
}

// Level is one price level of a book side.
type Level struct {
	Price float64 `json:"p"`
	Size  float64 `json:"s"`
}

// DepthLevel is a depth-of-book snapshot. Best level first on each side.
type DepthLevel struct {
	Bids []Level `json:"bids"`
	Asks []Level `json:"asks"`
}

// Quote is a top-of-book quote.
type Quote struct {
	Bid     *float64 `json:"bid,omitempty"`
	Ask     *float64 `json:"ask,omitempty"`
	BidSize *float64 `json:"bid_size,omitempty"`
	AskSize *float64 `json:"ask_size,omitempty"`
}

// Trade is the last print.
type Trade struct {
	Price *float64 `json:"price,omitempty"`
	Size  *float64 `json:"size,omitempty"`
}

// Band is one standard-deviation band pair around a VWAP.
type Band struct {
	K     float64 `json:"k"`
	Upper float64 `json:"upper"`
	Lower float64 `json:"lower"`
}

// VwapSnapshot is the current session VWAP with its bands.
type VwapSnapshot struct {
	VWAP  *float64 `json:"vwap,omitempty"`
	Bands []Band   `json:"bands,omitempty"`
}

// ValueAreaSnapshot is a POC/VAH/VAL triple. Previous selects the
// previous-session variant ("pvva").
type ValueAreaSnapshot struct {
	POC      *float64 `json:"poc,omitempty"`
	VAH      *float64 `json:"vah,omitempty"`
	VAL      *float64 `json:"val,omitempty"`
	Previous bool     `json:"-"`
}

// PreviousVwapSnapshot is the VWAP of the previous session, computed from a
// volume-at-price profile over the bars [From, To].
type PreviousVwapSnapshot struct {
	VWAP     float64 `json:"vwap"`
	Bands    []Band  `json:"bands,omitempty"`
	Volume   float64 `json:"volume"`
	From     int     `json:"from"`
	To       int     `json:"to"`
	Degraded bool    `json:"degraded,omitempty"` // window came from the fallback size, not a boundary
}

// Pressure is the order-flow classification.
type Pressure string

const (
	PressureBullish Pressure = "BULLISH"
	PressureBearish Pressure = "BEARISH"
	PressureNeutral Pressure = "NEUTRAL"
)

// OrderFlowBar is a per-bar aggregate of ask/bid volume (NBCV-style).
type OrderFlowBar struct {
	AskVolume   float64  `json:"ask_volume"`
	BidVolume   float64  `json:"bid_volume"`
	Delta       float64  `json:"delta"`
	TotalVolume float64  `json:"total_volume"`
	DeltaRatio  float64  `json:"delta_ratio"`
	Pressure    Pressure `json:"pressure"`
}

// CumulativeDelta is the running session delta.
type CumulativeDelta struct {
	Value    *float64 `json:"value,omitempty"`
	BarDelta *float64 `json:"bar_delta,omitempty"`
}

// VolatilityIndexBar is an OHLC bar of a volatility index.
type VolatilityIndexBar struct {
	Open  *float64 `json:"open,omitempty"`
	High  *float64 `json:"high,omitempty"`
	Low   *float64 `json:"low,omitempty"`
	Close *float64 `json:"close,omitempty"`
}

// NamedLevel is one price level of a leveled indicator family.
type NamedLevel struct {
	Family string  `json:"family"`
	Name   string  `json:"name"`
	Index  int     `json:"idx"`
	Price  float64 `json:"price"`
}

// CorrelationSample is a rolling correlation against a peer instrument.
type CorrelationSample struct {
	Peer  string  `json:"peer"`
	Value float64 `json:"value"`
}

func (*BaseBar) Kind() EventType { return EventBar }
func (*DepthLevel) Kind() EventType { return EventDepth }
func (*Quote) Kind() EventType { return EventQuote }
func (*Trade) Kind() EventType { return EventTrade }
func (*VwapSnapshot) Kind() EventType { return EventVWAP }
func (*PreviousVwapSnapshot) Kind() EventType { return EventPreviousVWAP }
func (*OrderFlowBar) Kind() EventType { return EventOrderFlow }
func (*CumulativeDelta) Kind() EventType { return EventCumDelta }
func (*VolatilityIndexBar) Kind() EventType { return EventVolatility }
func (*NamedLevel) Kind() EventType { return EventNamedLevel }
func (*CorrelationSample) Kind() EventType { return EventCorrelation }

func (v *ValueAreaSnapshot) Kind() EventType {
	if v.Previous {
		return EventValueAreaPrev
	}
	return EventValueArea
}

func (*BaseBar) Discriminator() string { return "" }
func (*DepthLevel) Discriminator() string { return "" }
func (*Quote) Discriminator() string { return "" }
func (*Trade) Discriminator() string { return "" }
func (*VwapSnapshot) Discriminator() string { return "" }
func (*ValueAreaSnapshot) Discriminator() string { return "" }
func (*PreviousVwapSnapshot) Discriminator() string { return "" }
func (*OrderFlowBar) Discriminator() string { return "" }
func (*CumulativeDelta) Discriminator() string { return "" }
func (*VolatilityIndexBar) Discriminator() string { return "" }
func (l *NamedLevel) Discriminator() string { return l.Family + "/" + l.Name }
func (c *CorrelationSample) Discriminator() string { return c.Peer }
