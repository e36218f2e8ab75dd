package strategy

import (
	"math"

	"scalp_bot/internal/models"
)

// ExtremeMove: цена за последние window свечей ушла больше чем на threshold
// (0.015 => 1.5%). В такие моменты новые входы не делаем.
func ExtremeMove(candles []models.Candle, window int, threshold float64) bool {
	if window <= 0 || len(candles) <= window {
		return false
	}
	from := candles[len(candles)-1-window].Close
	to := candles[len(candles)-1].Close
	if from <= 0 {
		return false
	}
	return math.Abs(to-from)/from > threshold
}
