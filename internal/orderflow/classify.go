package orderflow

import (
	"math"

	"github.com/rickgao/chartflow/internal/model"
)

// Thresholds configures Classify.
type Thresholds struct {
	MinTotalVolume   float64 `yaml:"min_total_volume"`
	MinAbsDeltaRatio float64 `yaml:"min_abs_delta_ratio"`
	MinSideRatio     float64 `yaml:"min_side_ratio"`
}

// DefaultThresholds returns the thresholds used when a source sets none.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTotalVolume:   50,
		MinAbsDeltaRatio: 0.15,
		MinSideRatio:     1.5,
	}
}

// Inputs are the raw values read from the host for one bar. Ask and bid
// volume are required; the rest are derived when missing.
type Inputs struct {
	AskVolume   float64
	BidVolume   float64
	Delta       *float64
	TotalVolume *float64
}

// Derive builds a reconciled, unclassified OrderFlowBar.
func Derive(in Inputs) model.OrderFlowBar {
	bar := model.OrderFlowBar{
		AskVolume: in.AskVolume,
		BidVolume: in.BidVolume,
		Delta:     in.AskVolume - in.BidVolume,
	}
	if in.Delta != nil {
		bar.Delta = *in.Delta
	}

	sides := in.AskVolume + in.BidVolume
	bar.TotalVolume = sides
	if in.TotalVolume != nil && *in.TotalVolume > sides {
		bar.TotalVolume = *in.TotalVolume
	}

	if bar.TotalVolume > 0 {
		bar.DeltaRatio = bar.Delta / bar.TotalVolume
	}
	return bar
}

// Classify returns the pressure of bar under th.
func Classify(bar model.OrderFlowBar, th Thresholds) model.Pressure {
	if bar.TotalVolume < th.MinTotalVolume {
		return model.PressureNeutral
	}
	strongDelta := math.Abs(bar.DeltaRatio) >= th.MinAbsDeltaRatio

	switch {
	case bar.Delta > 0 && (strongDelta || sideRatio(bar.AskVolume, bar.BidVolume) >= th.MinSideRatio):
		return model.PressureBullish
	case bar.Delta < 0 && (strongDelta || sideRatio(bar.BidVolume, bar.AskVolume) >= th.MinSideRatio):
		return model.PressureBearish
	default:
		return model.PressureNeutral
	}
}

// Build derives and classifies in one step.
func Build(in Inputs, th Thresholds) model.OrderFlowBar {
	bar := Derive(in)
	bar.Pressure = Classify(bar, th)
	return bar
}

// sideRatio returns num/den. A zero denominator with a positive numerator
// counts as an infinitely dominant side.
func sideRatio(num, den float64) float64 {
	if den == 0 {
		if num > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return num / den
}
