package market

import "time"

// Candle represents OHLC (Open, High, Low, Close) candlestick data.
// MTS is the candle open time in epoch milliseconds, which is the clock the
// whole runtime runs on.
type Candle struct {
	MTS    int64
	Open   float64
	Close  float64
	High   float64
	Low    float64
	Volume float64
	Symbol string
	TF     string
}

func (c Candle) Time() time.Time {
	return time.UnixMilli(c.MTS).UTC()
}

// Trade is a single public trade matched on the book.
type Trade struct {
	MTS    int64
	Price  float64
	Amount float64
	Symbol string
}

func (t Trade) Time() time.Time {
	return time.UnixMilli(t.MTS).UTC()
}
