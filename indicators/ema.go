package indicators

import "fmt"

// ExponentialMA is a streaming Exponential Moving Average seeded with an
// SMA over the warmup window. It keeps the value before the latest step so
// Update can recompute that step in place.
type ExponentialMA struct {
	period     int
	multiplier float64

	ema       float64
	prev      float64
	warmupSum float64
	last      float64
	count     int
}

func NewEMA(period int) *ExponentialMA {
	return &ExponentialMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *ExponentialMA) Name() string {
	return fmt.Sprintf("EMA(%d)", e.period)
}

func (e *ExponentialMA) Add(v float64) {
	e.last = v
	e.count++
	if e.count <= e.period {
		e.warmupSum += v
		if e.count == e.period {
			// Seed with the SMA of the warmup window
			e.prev = 0
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.prev = e.ema
	e.ema = (v-e.ema)*e.multiplier + e.ema
}

func (e *ExponentialMA) Update(v float64) {
	if e.count == 0 {
		e.Add(v)
		return
	}
	if e.count <= e.period {
		e.warmupSum += v - e.last
		e.last = v
		if e.count == e.period {
			e.ema = e.warmupSum / float64(e.period)
		}
		return
	}
	e.last = v
	e.ema = (v-e.prev)*e.multiplier + e.prev
}

func (e *ExponentialMA) Ready() bool {
	return e.count >= e.period
}

func (e *ExponentialMA) Value() float64 {
	if !e.Ready() {
		return 0
	}
	return e.ema
}

func (e *ExponentialMA) Reset() {
	e.ema = 0
	e.prev = 0
	e.warmupSum = 0
	e.last = 0
	e.count = 0
}
