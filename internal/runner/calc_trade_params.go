package runner

import (
	"fmt"
	"math"

	"scalp_bot/internal/models"
)

type ExitParams struct {
	ATRMult float64 // TP = entry ± ATR*mult
	MaxPct  float64 // не дальше entry*(1±MaxPct)
	FeeRate float64 // комиссия за сторону; TP не ближе 3*fee от входа
}

// CalcExitPrice считает цену тейка. forced=true, если минимальная
// прибыль не влезает в MaxPct и цена прижата к границе.
func CalcExitPrice(entry, atr float64, dir models.Direction, p ExitParams) (price float64, forced bool, err error) {
	if entry <= 0 || math.IsNaN(entry) || math.IsInf(entry, 0) {
		return 0, false, fmt.Errorf("entry %v: %w", entry, models.ErrUnavailable)
	}
	if atr < 0 || math.IsNaN(atr) || math.IsInf(atr, 0) {
		atr = 0
	}

	fees := entry * p.FeeRate * 3
	if dir == models.Short {
		bound := entry * (1 - p.MaxPct)
		tp := math.Max(entry-atr*p.ATRMult, bound)
		tp = math.Min(tp, entry-fees)
		if tp < bound {
			return bound, true, nil
		}
		return tp, false, nil
	}

	bound := entry * (1 + p.MaxPct)
	tp := math.Min(entry+atr*p.ATRMult, bound)
	tp = math.Max(tp, entry+fees)
	if tp > bound {
		return bound, true, nil
	}
	return tp, false, nil
}

// PotentialProfit: ход до тейка минус три комиссии, в цене.
func PotentialProfit(entry, exit, feeRate float64) float64 {
	return math.Abs(exit-entry) - entry*feeRate*3
}
