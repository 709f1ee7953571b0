package bitfinex

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/hfstrategy/broker"
)

func TestParseOrderType(t *testing.T) {
	cases := []struct {
		wire string
		want broker.OrderType
	}{
		{"MARKET", broker.MarketType(broker.Margin)},
		{"LIMIT", broker.LimitType(broker.Margin)},
		{"STOP LIMIT", broker.StopLimitType(broker.Margin)},
		{"EXCHANGE MARKET", broker.MarketType(broker.Exchange)},
		{"EXCHANGE LIMIT", broker.LimitType(broker.Exchange)},
	}
	for _, c := range cases {
		got, err := parseOrderType(c.wire)
		require.NoError(t, err, c.wire)
		assert.Equal(t, c.want, got)
		// Round-trips back to the wire string
		assert.Equal(t, c.wire, got.String())
	}

	_, err := parseOrderType("TRAILING STOP")
	assert.Error(t, err)
}

func TestParseOrder(t *testing.T) {
	raw := json.RawMessage(`[33950998275, 42, 1573040000, "tBTCUSD",
		1573040076000, 1573040080000, 0, -1, "EXCHANGE LIMIT", null, null,
		null, 0, "EXECUTED @ 110.0(-1.0)", null, null, 110, 109.9]`)

	o, cid, err := parseOrder(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(33950998275), o.ID)
	assert.Equal(t, int64(42), o.GID)
	assert.Equal(t, int64(1573040000), cid)
	assert.Equal(t, "tBTCUSD", o.Symbol)
	assert.Equal(t, int64(1573040076000), o.MTSCreate)
	assert.Equal(t, int64(1573040080000), o.MTSUpdate)
	assert.Equal(t, 0.0, o.Amount)
	assert.Equal(t, -1.0, o.AmountOrig)
	assert.Equal(t, -1.0, o.Filled())
	assert.Equal(t, broker.LimitType(broker.Exchange), o.Type)
	assert.Equal(t, "EXECUTED @ 110.0(-1.0)", o.Status)
	assert.Equal(t, 110.0, o.Price)
	assert.Equal(t, 109.9, o.PriceAvg)
}

func TestParseOrderRejectsShortArray(t *testing.T) {
	_, _, err := parseOrder(json.RawMessage(`[1, 2, 3]`))
	assert.Error(t, err)
}

func TestFormatFloat(t *testing.T) {
	assert.Equal(t, "0.001", formatFloat(0.001))
	assert.Equal(t, "-1.5", formatFloat(-1.5))
	assert.Equal(t, "100", formatFloat(100))
}
