package journal

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVJournalWritesRecords(t *testing.T) {
	dir := t.TempDir()
	j, err := NewCSV(dir)
	require.NoError(t, err)

	require.NoError(t, j.RecordOrder(NewOrderRecord(
		1, 42, "tBTCUSD", "LIMIT", "EXECUTED", 1000, 1.5, 100.25, 0.15, "entry",
	)))
	require.NoError(t, j.RecordPosition(NewPositionRecord(
		"tBTCUSD", "entry", 1000, 100.25, 150.375, 0.3, 9.7,
	)))
	require.NoError(t, j.Close())

	orders, err := os.ReadFile(filepath.Join(dir, "orders.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(orders)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "order_id")
	assert.Contains(t, lines[1], "tBTCUSD")
	assert.Contains(t, lines[1], "100.25")

	positions, err := os.ReadFile(filepath.Join(dir, "positions.csv"))
	require.NoError(t, err)
	lines = strings.Split(strings.TrimSpace(string(positions)), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "9.7")
}

func TestSQLiteJournalRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := NewSQLite(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordOrder(NewOrderRecord(
		1, 42, "tBTCUSD", "EXCHANGE LIMIT", "EXECUTED", 1000, -1, 110, 0.22, "exit",
	)))
	require.NoError(t, j.RecordPosition(NewPositionRecord(
		"tBTCUSD", "", 1000, 100, 210, 0.42, 9.58,
	)))

	var n int
	require.NoError(t, j.db.QueryRow("SELECT COUNT(*) FROM orders").Scan(&n))
	assert.Equal(t, 1, n)

	var symbol string
	var netPL float64
	require.NoError(t, j.db.QueryRow("SELECT symbol, net_pl FROM positions").Scan(&symbol, &netPL))
	assert.Equal(t, "tBTCUSD", symbol)
	assert.InDelta(t, 9.58, netPL, 1e-9)
}
