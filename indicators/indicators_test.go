package indicators

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSMAWindow(t *testing.T) {
	sma := NewSMA(3)
	assert.False(t, sma.Ready())
	assert.Equal(t, 0.0, sma.Value())

	sma.Add(10)
	sma.Add(20)
	assert.False(t, sma.Ready())

	sma.Add(30)
	assert.True(t, sma.Ready())
	assert.Equal(t, 20.0, sma.Value())

	// Window slides
	sma.Add(40)
	assert.Equal(t, 30.0, sma.Value())
}

func TestSMAUpdateRevisesLast(t *testing.T) {
	sma := NewSMA(2)
	sma.Add(10)
	sma.Add(20)
	assert.Equal(t, 15.0, sma.Value())

	sma.Update(30)
	assert.Equal(t, 20.0, sma.Value())

	// Repeated updates keep replacing the same slot
	sma.Update(40)
	assert.Equal(t, 25.0, sma.Value())
}

func TestSMAReset(t *testing.T) {
	sma := NewSMA(2)
	sma.Add(10)
	sma.Add(20)
	sma.Reset()
	assert.False(t, sma.Ready())
}

func TestEMASeedsWithSMA(t *testing.T) {
	ema := NewEMA(3)
	ema.Add(10)
	ema.Add(20)
	assert.False(t, ema.Ready())

	ema.Add(30)
	assert.True(t, ema.Ready())
	assert.Equal(t, 20.0, ema.Value())
}

func TestEMAAdvances(t *testing.T) {
	ema := NewEMA(3)
	for _, v := range []float64{10, 20, 30} {
		ema.Add(v)
	}
	// multiplier = 2/(3+1) = 0.5
	ema.Add(40)
	assert.InDelta(t, 30.0, ema.Value(), 1e-9)
	ema.Add(40)
	assert.InDelta(t, 35.0, ema.Value(), 1e-9)
}

func TestEMAUpdateRevisesCurrentStep(t *testing.T) {
	ema := NewEMA(3)
	for _, v := range []float64{10, 20, 30} {
		ema.Add(v)
	}
	ema.Add(40) // ema = 30

	// Revising the latest step recomputes it from the value before it.
	ema.Update(20)
	assert.InDelta(t, 20.0, ema.Value(), 1e-9)
	ema.Update(40)
	assert.InDelta(t, 30.0, ema.Value(), 1e-9)
}

func TestEMAUpdateDuringWarmup(t *testing.T) {
	ema := NewEMA(2)
	ema.Add(10)
	ema.Add(20)
	assert.Equal(t, 15.0, ema.Value())

	ema.Update(30)
	assert.Equal(t, 20.0, ema.Value())
}

func TestNames(t *testing.T) {
	assert.Equal(t, "SMA(3)", NewSMA(3).Name())
	assert.Equal(t, "EMA(9)", NewEMA(9).Name())
}
