package indicators

import "fmt"

// SimpleMA is a streaming Simple Moving Average.
type SimpleMA struct {
	period int
	values []float64
}

func NewSMA(period int) *SimpleMA {
	return &SimpleMA{
		period: period,
		values: make([]float64, 0, period),
	}
}

func (m *SimpleMA) Name() string {
	return fmt.Sprintf("SMA(%d)", m.period)
}

func (m *SimpleMA) Add(v float64) {
	m.values = append(m.values, v)
	// Keep only the last 'period' values
	if len(m.values) > m.period {
		m.values = m.values[1:]
	}
}

func (m *SimpleMA) Update(v float64) {
	if len(m.values) == 0 {
		m.Add(v)
		return
	}
	m.values[len(m.values)-1] = v
}

func (m *SimpleMA) Ready() bool {
	return len(m.values) >= m.period
}

func (m *SimpleMA) Value() float64 {
	if !m.Ready() {
		return 0
	}
	sum := 0.0
	for _, v := range m.values {
		sum += v
	}
	return sum / float64(len(m.values))
}

func (m *SimpleMA) Reset() {
	m.values = m.values[:0]
}
