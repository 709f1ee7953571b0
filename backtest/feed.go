// Package backtest replays historical market data through a strategy bound
// to the simulated order manager and summarizes the outcome.
package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/rustyeddy/hfstrategy/market"
)

// LoadCandles reads candles from a CSV file with the column layout
// mts,open,close,high,low,volume. A header row is skipped if present.
func LoadCandles(path, symbol, tf string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	var candles []market.Candle
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read candle file: %w", err)
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("candle row: want 6 columns, got %d", len(rec))
		}

		mts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			// Header row
			continue
		}
		vals := make([]float64, 5)
		for i := 0; i < 5; i++ {
			vals[i], err = strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("candle row mts=%d: %w", mts, err)
			}
		}
		candles = append(candles, market.Candle{
			MTS:    mts,
			Open:   vals[0],
			Close:  vals[1],
			High:   vals[2],
			Low:    vals[3],
			Volume: vals[4],
			Symbol: symbol,
			TF:     tf,
		})
	}
	return candles, nil
}

// LoadTrades reads public trades from a CSV file with the column layout
// mts,price,amount.
func LoadTrades(path, symbol string) ([]market.Trade, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trade file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	var trades []market.Trade
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read trade file: %w", err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("trade row: want 3 columns, got %d", len(rec))
		}

		mts, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			continue
		}
		price, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return nil, fmt.Errorf("trade row mts=%d: %w", mts, err)
		}
		amount, err := strconv.ParseFloat(rec[2], 64)
		if err != nil {
			return nil, fmt.Errorf("trade row mts=%d: %w", mts, err)
		}
		trades = append(trades, market.Trade{
			MTS:    mts,
			Price:  price,
			Amount: amount,
			Symbol: symbol,
		})
	}
	return trades, nil
}
