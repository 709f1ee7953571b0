// Package journal persists the trade history a strategy produces: every
// executed order and every closed position. Two backends exist, CSV for
// quick backtest inspection and SQLite for durable storage.
package journal

// PositionRecord is one closed position.
type PositionRecord struct {
	Symbol    string
	Tag       string
	OpenedMTS int64
	PriceAvg  float64
	Volume    float64
	Fees      float64
	NetPL     float64
}

func NewPositionRecord(symbol, tag string, openedMTS int64, priceAvg, volume, fees, netPL float64) PositionRecord {
	return PositionRecord{
		Symbol:    symbol,
		Tag:       tag,
		OpenedMTS: openedMTS,
		PriceAvg:  priceAvg,
		Volume:    volume,
		Fees:      fees,
		NetPL:     netPL,
	}
}

// OrderRecord is one executed (or cancelled) order.
type OrderRecord struct {
	ID     int64
	GID    int64
	Symbol string
	Type   string
	Status string
	MTS    int64
	Filled float64
	Price  float64
	Fee    float64
	Tag    string
}

func NewOrderRecord(id, gid int64, symbol, typ, status string, mts int64, filled, price, fee float64, tag string) OrderRecord {
	return OrderRecord{
		ID:     id,
		GID:    gid,
		Symbol: symbol,
		Type:   typ,
		Status: status,
		MTS:    mts,
		Filled: filled,
		Price:  price,
		Fee:    fee,
		Tag:    tag,
	}
}

// Journal receives records as they happen. Implementations must be safe
// for use from the strategy dispatch goroutine.
type Journal interface {
	RecordOrder(OrderRecord) error
	RecordPosition(PositionRecord) error
	Close() error
}
