package dedup

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/rickgao/chartflow/internal/model"
)

// Decision is the outcome of Gate.Check.
type Decision int

const (
	Suppress Decision = iota
	WriteFirst
	WriteChanged
	WriteForced
)

// Write reports whether the event should be written.
func (d Decision) Write() bool {
	return d != Suppress
}

func (d Decision) String() string {
	switch d {
	case Suppress:
		return "suppress"
	case WriteFirst:
		return "first"
	case WriteChanged:
		return "changed"
	case WriteForced:
		return "forced"
	default:
		return "unknown"
	}
}

// Key identifies one independently gated stream.
type Key struct {
	Source        string
	Symbol        string
	Type          model.EventType
	Discriminator string
}

// KeyOf returns the gate key of ev.
func KeyOf(ev model.Event) Key {
	return Key{
		Source:        ev.SourceID,
		Symbol:        ev.Symbol,
		Type:          ev.Type(),
		Discriminator: ev.Discriminator(),
	}
}

type entry struct {
	timestamp float64
	barIndex  int
	hash      uint64
	flushed   int // bar index of the last forced flush, -1 if none
}

// Stats holds gate counters.
type Stats struct {
	Checked    int64
	First      int64
	Changed    int64
	Forced     int64
	Suppressed int64
	Keys       int
}

// Gate is the per-adapter deduplication cache.
type Gate struct {
	entries map[Key]*entry
	stats   Stats
}

// NewGate creates an empty Gate.
func NewGate() *Gate {
	return &Gate{entries: make(map[Key]*entry)}
}

// Check decides whether ev should be written. closed reports whether ev's
// bar has just closed. A passing event becomes the cached state for its key.
func (g *Gate) Check(ev model.Event, closed bool) Decision {
	g.stats.Checked++

	key := KeyOf(ev)
	hash := payloadHash(ev.Payload)

	e, ok := g.entries[key]
	if !ok {
		e = &entry{flushed: -1}
		g.entries[key] = e
		if closed {
			e.flushed = ev.BarIndex
		}
		e.store(ev, hash)
		g.stats.First++
		return WriteFirst
	}

	if closed && e.flushed != ev.BarIndex {
		e.flushed = ev.BarIndex
		e.store(ev, hash)
		g.stats.Forced++
		return WriteForced
	}

	keyChanged := e.timestamp != ev.Timestamp || e.barIndex != ev.BarIndex
	if keyChanged && e.hash != hash {
		e.store(ev, hash)
		g.stats.Changed++
		return WriteChanged
	}

	g.stats.Suppressed++
	return Suppress
}

// Forget drops every cached key of source and symbol.
func (g *Gate) Forget(source, symbol string) {
	for k := range g.entries {
		if k.Source == source && k.Symbol == symbol {
			delete(g.entries, k)
		}
	}
}

// Stats returns a snapshot of the gate counters.
func (g *Gate) Stats() Stats {
	s := g.stats
	s.Keys = len(g.entries)
	return s
}

func (e *entry) store(ev model.Event, hash uint64) {
	e.timestamp = ev.Timestamp
	e.barIndex = ev.BarIndex
	e.hash = hash
}

// payloadHash hashes the JSON encoding of p. Struct field order is fixed, so
// equal payloads hash equally.
func payloadHash(p model.Payload) uint64 {
	if p == nil {
		return 0
	}
	data, err := json.Marshal(p)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}
