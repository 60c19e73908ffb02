package domain

import "time"

// Range is a closed interval [Low, High] on one render axis.
type Range struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Width returns High - Low.
func (r Range) Width() float64 { return r.High - r.Low }

// Degenerate reports whether the range has zero width.
func (r Range) Degenerate() bool { return r.Low == r.High }

// RenderGrid is the discretised time/price plane a pipeline run renders onto.
// It is created once per run and never mutated.
type RenderGrid struct {
	TimeRange  Range `json:"time_range"`
	TimeCells  int   `json:"time_cells"`
	PriceRange Range `json:"price_range"`
	PriceCells int   `json:"price_cells"`
}

// SplattedDepth is the net (ask minus bid) resting depth per price cell.
type SplattedDepth struct {
	PriceRange Range     `json:"price_range"`
	Volumes    []float64 `json:"volumes"`
}

// SplattedVolumes holds the smoothed integrated quantity per time cell for
// each side. The two series are not netted.
type SplattedVolumes struct {
	TimeRange  Range     `json:"time_range"`
	AskVolumes []float64 `json:"ask_volumes"`
	BidVolumes []float64 `json:"bid_volumes"`
}

// SplattedBlocks is the netted price/time heatmap. Volumes is time-major:
// Volumes[timeCell][priceCell].
type SplattedBlocks struct {
	Grid    RenderGrid  `json:"grid"`
	Volumes [][]float64 `json:"volumes"`
}

// Frame is the result of one completed pipeline run for a symbol.
type Frame struct {
	RunID      string          `json:"run_id"`
	Symbol     string          `json:"symbol"`
	RenderedAt time.Time       `json:"rendered_at"`
	Duration   time.Duration   `json:"duration_ns"`
	Grid       RenderGrid      `json:"grid"`
	Depth      SplattedDepth   `json:"depth"`
	Volumes    SplattedVolumes `json:"volumes"`
	Blocks     SplattedBlocks  `json:"blocks"`
}

// Warning is a non-fatal problem surfaced to the presentation layer.
type Warning struct {
	Symbol  string    `json:"symbol,omitempty"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
