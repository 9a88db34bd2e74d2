package orderflow

import (
	"testing"

	"github.com/rickgao/chartflow/internal/model"
)

func ptr(v float64) *float64 { return &v }

func TestBuild_StrongBuying(t *testing.T) {
	th := Thresholds{MinTotalVolume: 50, MinAbsDeltaRatio: 0.15, MinSideRatio: 1.5}

	bar := Build(Inputs{AskVolume: 90, BidVolume: 30, Delta: ptr(60), TotalVolume: ptr(120)}, th)

	if bar.DeltaRatio != 0.5 {
		t.Errorf("DeltaRatio = %v, want 0.5", bar.DeltaRatio)
	}
	if bar.Pressure != model.PressureBullish {
		t.Errorf("Pressure = %s, want BULLISH", bar.Pressure)
	}
}

func TestClassify(t *testing.T) {
	th := Thresholds{MinTotalVolume: 50, MinAbsDeltaRatio: 0.15, MinSideRatio: 1.5}

	tests := []struct {
		name string
		in   Inputs
		want model.Pressure
	}{
		{"below min total", Inputs{AskVolume: 40, BidVolume: 5}, model.PressureNeutral},
		{"bullish on delta ratio", Inputs{AskVolume: 70, BidVolume: 50}, model.PressureBullish},
		{"bearish on delta ratio", Inputs{AskVolume: 30, BidVolume: 90}, model.PressureBearish},
		{"balanced", Inputs{AskVolume: 100, BidVolume: 100}, model.PressureNeutral},
		{"weak positive delta", Inputs{AskVolume: 105, BidVolume: 100}, model.PressureNeutral},
		{"no bids", Inputs{AskVolume: 60, BidVolume: 0}, model.PressureBullish},
		{
			// ratio 10/1000 = 0.01 fails, ask/bid 60/40 = 1.5 passes
			"bullish on side ratio",
			Inputs{AskVolume: 60, BidVolume: 40, Delta: ptr(10), TotalVolume: ptr(1000)},
			model.PressureBullish,
		},
		{
			"bearish on side ratio",
			Inputs{AskVolume: 40, BidVolume: 60, Delta: ptr(-10), TotalVolume: ptr(1000)},
			model.PressureBearish,
		},
		{
			"supplied delta disagrees with sides",
			Inputs{AskVolume: 90, BidVolume: 30, Delta: ptr(-60)},
			model.PressureBearish,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(Derive(tt.in), th); got != tt.want {
				t.Errorf("Classify(%+v) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestClassify_Pure(t *testing.T) {
	th := DefaultThresholds()
	bar := Derive(Inputs{AskVolume: 77, BidVolume: 41, TotalVolume: ptr(130)})

	first := Classify(bar, th)
	for i := 0; i < 100; i++ {
		if got := Classify(bar, th); got != first {
			t.Fatalf("call %d = %s, want %s", i, got, first)
		}
	}
}

func TestDerive_ReconcilesTotal(t *testing.T) {
	tests := []struct {
		name  string
		in    Inputs
		total float64
	}{
		{"missing total", Inputs{AskVolume: 10, BidVolume: 5}, 15},
		{"total below sides", Inputs{AskVolume: 10, BidVolume: 5, TotalVolume: ptr(12)}, 15},
		{"total above sides", Inputs{AskVolume: 10, BidVolume: 5, TotalVolume: ptr(20)}, 20},
		{"empty bar", Inputs{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bar := Derive(tt.in)
			if bar.TotalVolume != tt.total {
				t.Errorf("TotalVolume = %v, want %v", bar.TotalVolume, tt.total)
			}
			if bar.TotalVolume < bar.AskVolume+bar.BidVolume {
				t.Errorf("TotalVolume %v < ask+bid %v", bar.TotalVolume, bar.AskVolume+bar.BidVolume)
			}
		})
	}
}
