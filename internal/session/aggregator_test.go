package session

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBars struct {
	boundaries map[int]bool
	prices     map[int]float64
	volumes    map[int]float64
	scans      int
}

func newFakeBars() *fakeBars {
	return &fakeBars{
		boundaries: make(map[int]bool),
		prices:     make(map[int]float64),
		volumes:    make(map[int]float64),
	}
}

func (f *fakeBars) IsNewSessionBoundary(i int) bool {
	f.scans++
	return f.boundaries[i]
}

func (f *fakeBars) Price(i int) (float64, bool) {
	v, ok := f.prices[i]
	return v, ok
}

func (f *fakeBars) Volume(i int) (float64, bool) {
	v, ok := f.volumes[i]
	return v, ok
}

func (f *fakeBars) bar(i int, price, vol float64) {
	f.prices[i] = price
	f.volumes[i] = vol
}

func TestCompute_PreviousSessionVWAP(t *testing.T) {
	src := newFakeBars()
	src.boundaries[0] = true
	src.boundaries[3] = true
	src.bar(0, 100, 1)
	src.bar(1, 102, 1)
	src.bar(2, 104, 2)
	src.bar(3, 200, 50) // current session, not counted
	src.bar(4, 201, 50)

	a := New(Config{MaxLookback: 10, FallbackWindow: 5, BandMultiples: []float64{1, 2}}, src, nil)
	snap := a.Compute(4)
	require.NotNil(t, snap)

	// nodes: 100x1, 102x1, 104x2 -> mean 102.5
	assert.Equal(t, 102.5, snap.VWAP)
	assert.Equal(t, 4.0, snap.Volume)
	assert.Equal(t, 0, snap.From)
	assert.Equal(t, 2, snap.To)
	assert.False(t, snap.Degraded)

	// variance = (100^2 + 102^2 + 2*104^2)/4 - 102.5^2 = 2.75
	sd := math.Sqrt(2.75)
	require.Len(t, snap.Bands, 2)
	assert.InDelta(t, 102.5+sd, snap.Bands[0].Upper, 1e-9)
	assert.InDelta(t, 102.5-2*sd, snap.Bands[1].Lower, 1e-9)
	for _, b := range snap.Bands {
		assert.GreaterOrEqual(t, b.Upper, b.Lower)
	}
}

func TestCompute_ZeroVolumeEmitsNothing(t *testing.T) {
	src := newFakeBars()
	src.boundaries[0] = true
	src.boundaries[3] = true
	src.bar(0, 100, 0)
	src.bar(1, 101, 0)
	src.bar(2, 102, 0)
	src.bar(3, 103, 10)

	a := New(Config{MaxLookback: 10, FallbackWindow: 5}, src, nil)

	assert.Nil(t, a.Compute(3))
	assert.Equal(t, int64(1), a.Stats().Empty)
}

func TestCompute_NoPreviousWindow(t *testing.T) {
	src := newFakeBars()
	src.boundaries[0] = true
	src.bar(0, 100, 10)
	src.bar(1, 101, 10)

	a := New(Config{MaxLookback: 10, FallbackWindow: 5}, src, nil)

	assert.Nil(t, a.Compute(1))
	assert.Equal(t, int64(1), a.Stats().NoWindow)
}

func TestCompute_BoundedScanFallsBack(t *testing.T) {
	src := newFakeBars()
	for i := 0; i < 10000; i++ {
		src.bar(i, 100+float64(i%5), 1)
	}

	a := New(Config{MaxLookback: 50, FallbackWindow: 20}, src, nil)
	snap := a.Compute(9999)
	require.NotNil(t, snap)

	assert.True(t, snap.Degraded)
	assert.Equal(t, 9960, snap.From)
	assert.Equal(t, 9979, snap.To)
	// two scans of at most MaxLookback+1 bars each
	assert.LessOrEqual(t, src.scans, 2*51)
}

type tickRounder struct{}

func (tickRounder) Normalize(v float64) float64 {
	if v > 1000 {
		v /= 100
	}
	return math.Round(v)
}

func (tickRounder) Round(v float64) float64 { return math.Round(v) }

func TestCompute_NormalizesNodePrices(t *testing.T) {
	src := newFakeBars()
	src.boundaries[0] = true
	src.boundaries[2] = true
	src.bar(0, 100, 1)
	src.bar(1, 10000, 1) // price x100
	src.bar(2, 100, 1)

	a := New(Config{MaxLookback: 10, FallbackWindow: 5}, src, tickRounder{})
	snap := a.Compute(2)
	require.NotNil(t, snap)

	assert.Equal(t, 100.0, snap.VWAP)
}

func TestUpdate_Throttle(t *testing.T) {
	src := newFakeBars()
	src.boundaries[0] = true
	src.boundaries[2] = true
	src.bar(0, 100, 1)
	src.bar(1, 100, 1)
	src.bar(2, 100, 1)
	src.bar(3, 100, 1)

	a := New(Config{MaxLookback: 10, FallbackWindow: 5}, src, nil)

	assert.NotNil(t, a.Update(2, "20240610"))
	assert.Nil(t, a.Update(2, "20240610"), "same bar, same day")
	assert.NotNil(t, a.Update(3, "20240610"), "new bar")
	assert.NotNil(t, a.Update(3, "20240611"), "new day, index unchanged")

	s := a.Stats()
	assert.Equal(t, int64(3), s.Runs)
	assert.Equal(t, int64(1), s.Throttled)
}

func TestCompute_Idempotent(t *testing.T) {
	src := newFakeBars()
	src.boundaries[0] = true
	src.boundaries[5] = true
	for i := 0; i < 8; i++ {
		src.bar(i, 100+float64(i), float64(i+1))
	}

	a := New(DefaultConfig(), src, nil)
	first := a.Compute(7)
	second := a.Compute(7)

	assert.Equal(t, first, second)
}
