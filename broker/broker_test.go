package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOrderTypeString(t *testing.T) {
	assert.Equal(t, "MARKET", MarketType(Margin).String())
	assert.Equal(t, "LIMIT", LimitType(Margin).String())
	assert.Equal(t, "STOP LIMIT", StopLimitType(Margin).String())
	assert.Equal(t, "EXCHANGE MARKET", MarketType(Exchange).String())
	assert.Equal(t, "EXCHANGE LIMIT", LimitType(Exchange).String())
	assert.Equal(t, "EXCHANGE STOP LIMIT", StopLimitType(Exchange).String())
}

func TestOrderFilled(t *testing.T) {
	o := Order{Amount: 0.5, AmountOrig: 2}
	assert.Equal(t, 1.5, o.Filled())

	short := Order{Amount: -0.5, AmountOrig: -2}
	assert.Equal(t, -1.5, short.Filled())

	resting := Order{Amount: 2, AmountOrig: 2}
	assert.Equal(t, 0.0, resting.Filled())
}

func TestOrderEventKindString(t *testing.T) {
	assert.Equal(t, "order_new", OrderNew.String())
	assert.Equal(t, "order_update", OrderUpdate.String())
	assert.Equal(t, "order_closed", OrderClosed.String())
}
