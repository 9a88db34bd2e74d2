package host

import (
	"sync"
)

// DefaultRetention is the number of bars kept per chart.
const DefaultRetention = 4096

// Memory is a bounded per-chart cache of recorded frames.
type Memory struct {
	retention int

	mu     sync.RWMutex
	charts map[string]*chart
}

type chart struct {
	symbol string
	bars   map[int]*Frame
	oldest int
	newest int
}

// NewMemory creates a Memory keeping at most retention bars per chart.
func NewMemory(retention int) *Memory {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Memory{
		retention: retention,
		charts:    make(map[string]*chart),
	}
}

// Record stores f. Frames for a bar already held are merged: series values
// are overwritten key by key and the closed/session flags latch. A bar index
// older than the retention window resets the chart (host reload).
func (m *Memory) Record(f Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.charts[f.Source]
	if !ok || f.Bar < c.newest-m.retention {
		c = &chart{bars: make(map[int]*Frame), oldest: f.Bar, newest: f.Bar}
		m.charts[f.Source] = c
	}
	c.symbol = f.Symbol

	held, ok := c.bars[f.Bar]
	if !ok {
		held = &Frame{Source: f.Source, Symbol: f.Symbol, Bar: f.Bar, Series: make(map[string]*float64, len(f.Series))}
		c.bars[f.Bar] = held
	}
	for k, v := range f.Series {
		if v == nil {
			delete(held.Series, k)
			continue
		}
		val := *v
		held.Series[k] = &val
	}
	held.Closed = held.Closed || f.Closed
	held.SessionStart = held.SessionStart || f.SessionStart

	if f.Bar > c.newest {
		c.newest = f.Bar
	}
	if f.Bar < c.oldest {
		c.oldest = f.Bar
	}
	c.evict(c.newest - m.retention)
}

// evict drops every bar at or below cutoff.
func (c *chart) evict(cutoff int) {
	if c.oldest > cutoff {
		return
	}
	if cutoff-c.oldest > len(c.bars) {
		for i := range c.bars {
			if i <= cutoff {
				delete(c.bars, i)
			}
		}
	} else {
		for i := c.oldest; i <= cutoff; i++ {
			delete(c.bars, i)
		}
	}
	c.oldest = cutoff + 1
}

// ReadSeries implements Port across all charts.
func (m *Memory) ReadSeries(sourceID, seriesID string, barIndex int) (float64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f := m.frame(sourceID, barIndex)
	if f == nil {
		return 0, false
	}
	return f.Value(seriesID)
}

// Latest returns the newest bar index recorded for sourceID.
func (m *Memory) Latest(sourceID string) (int, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.charts[sourceID]
	if !ok {
		return 0, false
	}
	return c.newest, true
}

// Sources returns the number of charts held.
func (m *Memory) Sources() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.charts)
}

// View returns a Port bound to sourceID.
func (m *Memory) View(sourceID string) Port {
	return &view{m: m, source: sourceID}
}

func (m *Memory) frame(sourceID string, barIndex int) *Frame {
	c, ok := m.charts[sourceID]
	if !ok {
		return nil
	}
	return c.bars[barIndex]
}

func (m *Memory) flag(sourceID string, barIndex int, get func(*Frame) bool) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f := m.frame(sourceID, barIndex)
	return f != nil && get(f)
}

type view struct {
	m      *Memory
	source string
}

func (v *view) ReadSeries(sourceID, seriesID string, barIndex int) (float64, bool) {
	return v.m.ReadSeries(sourceID, seriesID, barIndex)
}

func (v *view) BarHasClosed(barIndex int) bool {
	return v.m.flag(v.source, barIndex, func(f *Frame) bool { return f.Closed })
}

func (v *view) IsNewSessionBoundary(barIndex int) bool {
	return v.m.flag(v.source, barIndex, func(f *Frame) bool { return f.SessionStart })
}
