package normalize

import (
	"math"

	"github.com/shopspring/decimal"
)

// scaleFault is the factor some feeds erroneously multiply prices by.
const scaleFault = 100

// Corridor is the plausible price range of one instrument.
type Corridor struct {
	Min     float64 `yaml:"min"`
	Max     float64 `yaml:"max"`
	Ceiling float64 `yaml:"ceiling"` // magnitude above which a value is treated as price×100
}

// Contains reports whether v lies inside [Min, Max]. A zero Max disables the
// upper bound.
func (c Corridor) Contains(v float64) bool {
	if v < c.Min {
		return false
	}
	return c.Max <= 0 || v <= c.Max
}

// Normalizer converts raw host values into prices for one instrument.
type Normalizer struct {
	tick       decimal.Decimal
	multiplier float64
	corridor   Corridor
}

// New creates a Normalizer. A tick of zero disables rounding; a multiplier of
// zero is treated as 1.
func New(tick, multiplier float64, corridor Corridor) *Normalizer {
	if multiplier == 0 {
		multiplier = 1
	}
	return &Normalizer{
		tick:       decimal.NewFromFloat(tick),
		multiplier: multiplier,
		corridor:   corridor,
	}
}

// Normalize returns the best-effort price for raw.
func (n *Normalizer) Normalize(raw float64) float64 {
	if math.IsNaN(raw) || math.IsInf(raw, 0) {
		return raw
	}
	v := raw / n.multiplier
	for pass := 0; pass < 2; pass++ {
		if n.corridor.Ceiling > 0 && math.Abs(v) > n.corridor.Ceiling {
			v /= scaleFault
		}
		v = n.Round(v)
	}
	return v
}

// Round rounds v to the nearest tick.
func (n *Normalizer) Round(v float64) float64 {
	if n.tick.IsZero() {
		return v
	}
	return decimal.NewFromFloat(v).Div(n.tick).Round(0).Mul(n.tick).InexactFloat64()
}

// InCorridor reports whether a normalized price is plausible.
func (n *Normalizer) InCorridor(v float64) bool {
	return n.corridor.Contains(v)
}

// Corridor returns the configured corridor.
func (n *Normalizer) Corridor() Corridor {
	return n.corridor
}
