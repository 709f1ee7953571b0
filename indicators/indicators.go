// Package indicators provides streaming technical indicators. Add advances
// an indicator one step (a closed candle); Update revises the current step
// in place (an intra-candle trade), so trade-driven strategies see live
// values without corrupting the series.
package indicators

// Indicator is the streaming contract the strategy core drives.
type Indicator interface {
	Name() string

	// Add appends a new data point to the series.
	Add(v float64)
	// Update replaces the most recent data point.
	Update(v float64)

	Value() float64
	Ready() bool
	Reset()
}
