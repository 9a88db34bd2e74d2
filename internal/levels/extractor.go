package levels

import (
	"fmt"
	"math"
	"time"

	"github.com/rickgao/chartflow/internal/model"
)

// Family describes one leveled indicator.
type Family struct {
	Name   string        `yaml:"name"`
	Count  int           `yaml:"count"`  // number of sub-series to read
	Names  []string      `yaml:"names"`  // index -> level name
	Window time.Duration `yaml:"window"` // minimum event time between emissions
}

// LevelName returns the name of index i.
func (f Family) LevelName(i int) string {
	if i >= 0 && i < len(f.Names) && f.Names[i] != "" {
		return f.Names[i]
	}
	return fmt.Sprintf("%s_%d", f.Name, i)
}

// SeriesID returns the host series id of index i.
func (f Family) SeriesID(i int) string {
	return fmt.Sprintf("%s.%d", f.Name, i)
}

// Extractor turns one family's sub-series values into NamedLevels.
type Extractor struct {
	family   Family
	last     float64
	emitted  bool
	limited  int64
	rejected int64
}

// NewExtractor creates an Extractor for f.
func NewExtractor(f Family) *Extractor {
	return &Extractor{family: f}
}

// Family returns the extractor's family.
func (e *Extractor) Family() Family {
	return e.family
}

// Extract returns the valid levels among values, or nil when the family is
// still inside its rate-limit window at event time ts. values[i] is nil when
// the host had no value for index i.
func (e *Extractor) Extract(ts float64, values []*float64) []model.NamedLevel {
	if !e.due(ts) {
		e.limited++
		return nil
	}

	var out []model.NamedLevel
	for i, v := range values {
		if v == nil || !valid(*v) {
			if v != nil {
				e.rejected++
			}
			continue
		}
		out = append(out, model.NamedLevel{
			Family: e.family.Name,
			Name:   e.family.LevelName(i),
			Index:  i,
			Price:  *v,
		})
	}
	if len(out) > 0 {
		e.last = ts
		e.emitted = true
	}
	return out
}

// Limited returns the number of rate-limited calls.
func (e *Extractor) Limited() int64 {
	return e.limited
}

// Rejected returns the number of non-finite or non-positive values seen.
func (e *Extractor) Rejected() int64 {
	return e.rejected
}

// due reports whether the window has elapsed. A timestamp before the last
// emission (session rollover, replay) restarts the window.
func (e *Extractor) due(ts float64) bool {
	if !e.emitted || ts < e.last {
		return true
	}
	return ts-e.last >= e.family.Window.Seconds()
}

func valid(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}
