package host

// Port is the host input boundary. Implementations must not block.
type Port interface {
	// ReadSeries returns the value of seriesID on sourceID at barIndex.
	ReadSeries(sourceID, seriesID string, barIndex int) (float64, bool)

	// BarHasClosed reports whether barIndex is complete.
	BarHasClosed(barIndex int) bool

	// IsNewSessionBoundary reports whether barIndex opens a trading session.
	IsNewSessionBoundary(barIndex int) bool
}

// Frame is one host callback snapshot for one chart.
type Frame struct {
	Source       string              `json:"source"`
	Symbol       string              `json:"symbol"`
	Bar          int                 `json:"bar"`
	Closed       bool                `json:"closed,omitempty"`
	SessionStart bool                `json:"session_start,omitempty"`
	Series       map[string]*float64 `json:"series"`
}

// Value returns the series value carried by the frame.
func (f *Frame) Value(seriesID string) (float64, bool) {
	v, ok := f.Series[seriesID]
	if !ok || v == nil {
		return 0, false
	}
	return *v, true
}
