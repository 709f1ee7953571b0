package journal

import (
	"database/sql"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS orders (
	order_id   INTEGER,
	group_id   INTEGER,
	symbol     TEXT,
	type       TEXT,
	status     TEXT,
	mts        INTEGER,
	filled     REAL,
	price      REAL,
	fee        REAL,
	tag        TEXT
);

CREATE TABLE IF NOT EXISTS positions (
	symbol     TEXT,
	tag        TEXT,
	opened_mts INTEGER,
	price_avg  REAL,
	volume     REAL,
	fees       REAL,
	net_pl     REAL
);
`

type SQLiteJournal struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, err
	}
	return &SQLiteJournal{db: db}, nil
}

func (j *SQLiteJournal) RecordOrder(o OrderRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO orders
		(order_id, group_id, symbol, type, status, mts, filled, price, fee, tag)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.ID, o.GID, o.Symbol, o.Type, o.Status, o.MTS, o.Filled, o.Price, o.Fee, o.Tag,
	)
	return err
}

func (j *SQLiteJournal) RecordPosition(p PositionRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO positions
		(symbol, tag, opened_mts, price_avg, volume, fees, net_pl)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.Symbol, p.Tag, p.OpenedMTS, p.PriceAvg, p.Volume, p.Fees, p.NetPL,
	)
	return err
}

func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}
