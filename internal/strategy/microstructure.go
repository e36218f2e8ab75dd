package strategy

import (
	"fmt"
	"math"

	"scalp_bot/internal/models"
)

// Detector: всплеск объёма + пробой последних экстремумов + EMA-фильтр.
// Состояния нет: всё считается по переданным свечам.
type Detector struct {
	cfg Config
}

func NewDetector(cfg Config) *Detector {
	def := DefaultConfig()
	if cfg.MinBars <= 0 {
		cfg.MinBars = def.MinBars
	}
	if cfg.VolumeWindow <= 0 {
		cfg.VolumeWindow = def.VolumeWindow
	}
	if cfg.ATRPeriod <= 0 {
		cfg.ATRPeriod = def.ATRPeriod
	}
	if cfg.ATRMeanWindow <= 0 {
		cfg.ATRMeanWindow = def.ATRMeanWindow
	}
	if cfg.EMAPeriod <= 0 {
		cfg.EMAPeriod = def.EMAPeriod
	}
	if cfg.BreakoutLookback <= 0 {
		cfg.BreakoutLookback = def.BreakoutLookback
	}
	if cfg.ContractionRatio <= 0 {
		cfg.ContractionRatio = def.ContractionRatio
	}
	return &Detector{cfg: cfg}
}

func (d *Detector) Evaluate(symbol string, candles []models.Candle, mid float64, p models.SymbolProfile) models.Signal {
	sig := models.Signal{Symbol: symbol, Side: models.SideNone}

	n := len(candles)
	need := d.cfg.MinBars
	if need < d.cfg.BreakoutLookback+1 {
		need = d.cfg.BreakoutLookback + 1
	}
	if n < need {
		sig.Insufficient = true
		sig.Reason = fmt.Sprintf("insufficient data: %d/%d candles", n, need)
		return sig
	}

	highs := make([]float64, n)
	lows := make([]float64, n)
	closes := make([]float64, n)
	vols := make([]float64, n)
	for i, c := range candles {
		if !finitePositive(c.High) || !finitePositive(c.Low) || !finitePositive(c.Close) || math.IsNaN(c.Volume) {
			sig.Insufficient = true
			sig.Reason = fmt.Sprintf("invalid candle at %d", i)
			return sig
		}
		highs[i], lows[i], closes[i], vols[i] = c.High, c.Low, c.Close, c.Volume
	}

	atrs := ATR(highs, lows, closes, d.cfg.ATRPeriod)
	atr := atrs[n-1]
	atrMean := mean(atrs[max(0, n-d.cfg.ATRMeanWindow):])
	closeNow := closes[n-1]

	sig.ATR = atr
	sig.Close = closeNow

	if atr < d.cfg.ContractionRatio*atrMean {
		sig.Reason = fmt.Sprintf("volatility contraction: ATR %.6f < %.2f*%.6f", atr, d.cfg.ContractionRatio, atrMean)
		return sig
	}

	volMean := mean(vols[max(0, n-d.cfg.VolumeWindow):])
	spike := vols[n-1] > volMean*p.VolumeSpikeMult

	prev := n - 1 - d.cfg.BreakoutLookback
	prevMax := maxSlice(highs[prev : n-1])
	prevMin := minSlice(lows[prev : n-1])
	ema := EMA(closes, d.cfg.EMAPeriod)
	offset := p.BreakoutATRMult * atr

	switch {
	case spike && closeNow > prevMax+offset && closeNow > ema:
		sig.Side = models.SideBuy
		sig.Reason = fmt.Sprintf("LONG: volume %.2f > %.2f, close %.6f > high %.6f + %.6f, above EMA %.6f (mid %.6f)",
			vols[n-1], volMean*p.VolumeSpikeMult, closeNow, prevMax, offset, ema, mid)
	case spike && closeNow < prevMin-offset && closeNow < ema:
		sig.Side = models.SideSell
		sig.Reason = fmt.Sprintf("SHORT: volume %.2f > %.2f, close %.6f < low %.6f - %.6f, below EMA %.6f (mid %.6f)",
			vols[n-1], volMean*p.VolumeSpikeMult, closeNow, prevMin, offset, ema, mid)
	default:
		sig.Reason = fmt.Sprintf("no signal: spike=%t close=%.6f range=[%.6f, %.6f] ema=%.6f", spike, closeNow, prevMin, prevMax, ema)
	}
	return sig
}

func finitePositive(v float64) bool { return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v) }
