package journal

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// CSVJournal writes orders.csv and positions.csv under one directory.
type CSVJournal struct {
	orders    *csv.Writer
	positions *csv.Writer

	ordersFile    *os.File
	positionsFile *os.File
}

func NewCSV(dir string) (*CSVJournal, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	of, err := os.Create(filepath.Join(dir, "orders.csv"))
	if err != nil {
		return nil, err
	}
	pf, err := os.Create(filepath.Join(dir, "positions.csv"))
	if err != nil {
		of.Close()
		return nil, err
	}

	j := &CSVJournal{
		orders:        csv.NewWriter(of),
		positions:     csv.NewWriter(pf),
		ordersFile:    of,
		positionsFile: pf,
	}
	if err := j.orders.Write([]string{
		"order_id", "group_id", "symbol", "type", "status", "mts", "filled", "price", "fee", "tag",
	}); err != nil {
		j.Close()
		return nil, err
	}
	if err := j.positions.Write([]string{
		"symbol", "tag", "opened_mts", "price_avg", "volume", "fees", "net_pl",
	}); err != nil {
		j.Close()
		return nil, err
	}
	return j, nil
}

func (j *CSVJournal) RecordOrder(o OrderRecord) error {
	err := j.orders.Write([]string{
		strconv.FormatInt(o.ID, 10),
		strconv.FormatInt(o.GID, 10),
		o.Symbol,
		o.Type,
		o.Status,
		strconv.FormatInt(o.MTS, 10),
		fmtFloat(o.Filled),
		fmtFloat(o.Price),
		fmtFloat(o.Fee),
		o.Tag,
	})
	if err != nil {
		return fmt.Errorf("journal order %d: %w", o.ID, err)
	}
	j.orders.Flush()
	return j.orders.Error()
}

func (j *CSVJournal) RecordPosition(p PositionRecord) error {
	err := j.positions.Write([]string{
		p.Symbol,
		p.Tag,
		strconv.FormatInt(p.OpenedMTS, 10),
		fmtFloat(p.PriceAvg),
		fmtFloat(p.Volume),
		fmtFloat(p.Fees),
		fmtFloat(p.NetPL),
	})
	if err != nil {
		return fmt.Errorf("journal position %s: %w", p.Symbol, err)
	}
	j.positions.Flush()
	return j.positions.Error()
}

func (j *CSVJournal) Close() error {
	j.orders.Flush()
	j.positions.Flush()
	err := j.ordersFile.Close()
	if err2 := j.positionsFile.Close(); err == nil {
		err = err2
	}
	return err
}

func fmtFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
