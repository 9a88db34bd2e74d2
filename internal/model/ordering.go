package model

import "sort"

// Order rearranges the present values so that val ≤ poc ≤ vah, keeping the
// same set of numbers. Missing fields keep their slot empty. Returns true if
// anything moved.
func (v *ValueAreaSnapshot) Order() bool {
	slots := []**float64{&v.VAL, &v.POC, &v.VAH}
	present := make([]**float64, 0, 3)
	values := make([]float64, 0, 3)
	for _, s := range slots {
		if *s != nil {
			present = append(present, s)
			values = append(values, **s)
		}
	}
	if sort.Float64sAreSorted(values) {
		return false
	}
	sort.Float64s(values)
	for i, s := range present {
		*s = F(values[i])
	}
	return true
}

// OrderBands swaps any band pair whose upper is below its lower. Returns the
// number of swapped pairs.
func OrderBands(bands []Band) int {
	swapped := 0
	for i := range bands {
		if bands[i].Upper < bands[i].Lower {
			bands[i].Upper, bands[i].Lower = bands[i].Lower, bands[i].Upper
			swapped++
		}
	}
	return swapped
}

// Cap truncates each side to at most n levels. n <= 0 disables the cap.
// Returns true if any side was truncated.
func (d *DepthLevel) Cap(n int) bool {
	if n <= 0 {
		return false
	}
	capped := false
	if len(d.Bids) > n {
		d.Bids = d.Bids[:n]
		capped = true
	}
	if len(d.Asks) > n {
		d.Asks = d.Asks[:n]
		capped = true
	}
	return capped
}
