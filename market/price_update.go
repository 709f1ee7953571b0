package market

import "fmt"

// UpdateType tells whether a price update came from a closed candle or a
// matched public trade.
type UpdateType uint8

const (
	FromCandle UpdateType = iota + 1
	FromTrade
)

func (u UpdateType) String() string {
	switch u {
	case FromCandle:
		return "candle"
	case FromTrade:
		return "trade"
	}
	return "unknown"
}

// PriceUpdate is the unit the strategy core dispatches on: one price point
// for one symbol, plus the indicator values computed at that point.
type PriceUpdate struct {
	Price  float64
	Symbol string
	MTS    int64
	Type   UpdateType

	// Exactly one of these is set, matching Type.
	Candle *Candle
	Trade  *Trade

	// IndicatorValues is a snapshot of every registered indicator at the
	// time this update was emitted.
	IndicatorValues map[string]float64
}

func (u *PriceUpdate) IsCandle() bool { return u.Type == FromCandle }
func (u *PriceUpdate) IsTrade() bool  { return u.Type == FromTrade }

func (u *PriceUpdate) String() string {
	return fmt.Sprintf("PriceUpdate <price=%v symbol=%q mts=%d type=%s>",
		u.Price, u.Symbol, u.MTS, u.Type)
}
