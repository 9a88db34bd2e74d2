package normalize

import (
	"math"
	"testing"
)

func TestNormalize(t *testing.T) {
	es := Corridor{Min: 1000, Max: 20000, Ceiling: 20000}

	tests := []struct {
		name       string
		tick       float64
		multiplier float64
		raw        float64
		want       float64
	}{
		{"aligned", 0.25, 1, 5300.25, 5300.25},
		{"rounds to tick", 0.25, 1, 5300.37, 5300.25},
		{"rounds half up", 0.25, 1, 5300.375, 5300.5},
		{"scale fault x100", 0.25, 1, 530025, 5300.25},
		{"scale fault x10000", 0.25, 1, 53002500, 5300.25},
		{"multiplier", 0.25, 100, 530025, 5300.25},
		{"zero multiplier", 0.25, 0, 5300.25, 5300.25},
		{"no tick", 0, 1, 5300.123, 5300.123},
		{"cent tick", 0.01, 1, 18.456, 18.46},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := New(tt.tick, tt.multiplier, es)
			if got := n.Normalize(tt.raw); got != tt.want {
				t.Errorf("Normalize(%v) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalize_RecoversEveryTickAlignedPrice(t *testing.T) {
	n := New(0.25, 1, Corridor{Min: 1000, Max: 20000, Ceiling: 20000})

	for p := 4000.0; p < 4100; p += 0.25 {
		if got := n.Normalize(p * 100); got != p {
			t.Fatalf("Normalize(%v) = %v, want %v", p*100, got, p)
		}
	}
}

func TestNormalize_NonFinite(t *testing.T) {
	n := New(0.25, 1, Corridor{Ceiling: 20000})

	if got := n.Normalize(math.NaN()); !math.IsNaN(got) {
		t.Errorf("Normalize(NaN) = %v, want NaN", got)
	}
	if got := n.Normalize(math.Inf(1)); !math.IsInf(got, 1) {
		t.Errorf("Normalize(+Inf) = %v, want +Inf", got)
	}
}

func TestInCorridor(t *testing.T) {
	n := New(0.25, 1, Corridor{Min: 1000, Max: 20000, Ceiling: 20000})

	tests := []struct {
		v    float64
		want bool
	}{
		{5300, true},
		{999.75, false},
		{20000, true},
		{20000.25, false},
	}

	for _, tt := range tests {
		if got := n.InCorridor(tt.v); got != tt.want {
			t.Errorf("InCorridor(%v) = %v, want %v", tt.v, got, tt.want)
		}
	}

	open := Corridor{}
	if !open.Contains(1e9) {
		t.Error("zero corridor should accept any non-negative value")
	}
}
