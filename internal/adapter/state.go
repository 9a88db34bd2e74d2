package adapter

import (
	"github.com/rickgao/chartflow/internal/dedup"
	"github.com/rickgao/chartflow/internal/levels"
	"github.com/rickgao/chartflow/internal/session"
)

// State is the mutable per-(source, symbol) cache of one Adapter.
type State struct {
	Gate    *dedup.Gate
	Session *session.Aggregator
	Levels  []*levels.Extractor

	lastTimestamp float64
	seen          bool
}

// newState builds the state for d. src feeds the session aggregator.
func newState(d Descriptor, src session.Source, norm session.Normalizer) *State {
	s := &State{
		Gate:    dedup.NewGate(),
		Session: session.New(d.Session, src, norm),
	}
	for _, f := range d.Families {
		s.Levels = append(s.Levels, levels.NewExtractor(f))
	}
	return s
}

// observe records ts and reports whether it moved backwards.
func (s *State) observe(ts float64) bool {
	regressed := s.seen && ts < s.lastTimestamp
	s.lastTimestamp = ts
	s.seen = true
	return regressed
}
