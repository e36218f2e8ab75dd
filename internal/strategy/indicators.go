package strategy

import (
	"math"

	"scalp_bot/internal/models"
)

type emaState struct {
	alpha float64
	value float64
	init  bool
}

func newEMA(period int) emaState {
	if period <= 1 {
		period = 1
	}
	return emaState{alpha: 2.0 / (float64(period) + 1)}
}

func (e *emaState) Update(price float64) {
	if !e.init {
		e.value = price
		e.init = true
		return
	}
	e.value = e.alpha*price + (1-e.alpha)*e.value
}

// EMA последнего значения ряда, затравка: первая цена.
func EMA(xs []float64, period int) float64 {
	e := newEMA(period)
	for _, x := range xs {
		e.Update(x)
	}
	return e.value
}

// TrueRange по каждой свече; у первой нет предыдущего close, берём high-low.
func TrueRange(highs, lows, closes []float64) []float64 {
	out := make([]float64, len(highs))
	for i := range highs {
		tr := highs[i] - lows[i]
		if i > 0 {
			prev := closes[i-1]
			tr = math.Max(tr, math.Max(math.Abs(highs[i]-prev), math.Abs(lows[i]-prev)))
		}
		out[i] = tr
	}
	return out
}

// RollingMean: скользящее среднее, в начале ряда окно короче.
func RollingMean(xs []float64, window int) []float64 {
	if window < 1 {
		window = 1
	}
	out := make([]float64, len(xs))
	sum := 0.0
	for i, x := range xs {
		sum += x
		if i >= window {
			sum -= xs[i-window]
		}
		n := i + 1
		if n > window {
			n = window
		}
		out[i] = sum / float64(n)
	}
	return out
}

// ATR: ряд ATR как простое среднее true range.
func ATR(highs, lows, closes []float64, period int) []float64 {
	return RollingMean(TrueRange(highs, lows, closes), period)
}

func maxSlice(xs []float64) float64 {
	m := math.Inf(-1)
	for _, v := range xs {
		if v > m {
			m = v
		}
	}
	return m
}

func minSlice(xs []float64) float64 {
	m := math.Inf(1)
	for _, v := range xs {
		if v < m {
			m = v
		}
	}
	return m
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range xs {
		s += v
	}
	return s / float64(len(xs))
}

// CandleATR: последнее значение ATR по свечам; 0, если свечей нет
// или в них мусор.
func CandleATR(candles []models.Candle, period int) float64 {
	if len(candles) == 0 {
		return 0
	}
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	closes := make([]float64, len(candles))
	for i, c := range candles {
		if !finitePositive(c.High) || !finitePositive(c.Low) || !finitePositive(c.Close) {
			return 0
		}
		highs[i], lows[i], closes[i] = c.High, c.Low, c.Close
	}
	atrs := ATR(highs, lows, closes, period)
	return atrs[len(atrs)-1]
}
