package runner

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"scalp_bot/internal/models"
)

// CalcQuantity: notional/price с округлением до precision знаков.
// При precision 0 дробная часть отбрасывается, минимум 1 контракт;
// иначе минимум один шаг 10^-precision.
func CalcQuantity(notional, price float64, precision int) (float64, error) {
	if price <= 0 || math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, fmt.Errorf("price %v: %w", price, models.ErrUnavailable)
	}
	if notional <= 0 || math.IsNaN(notional) || math.IsInf(notional, 0) {
		return 0, fmt.Errorf("notional %v must be > 0", notional)
	}
	raw := decimal.NewFromFloat(notional).Div(decimal.NewFromFloat(price))
	return roundQuantity(raw, precision), nil
}

// RoundQuantity: те же правила для готового количества (DCA, частичное закрытие).
func RoundQuantity(qty float64, precision int) float64 {
	if qty <= 0 || math.IsNaN(qty) || math.IsInf(qty, 0) {
		return 0
	}
	return roundQuantity(decimal.NewFromFloat(qty), precision)
}

func roundQuantity(raw decimal.Decimal, precision int) float64 {
	if precision <= 0 {
		q := raw.Truncate(0)
		if q.LessThan(decimal.NewFromInt(1)) {
			q = decimal.NewFromInt(1)
		}
		return q.InexactFloat64()
	}

	q := raw.Round(int32(precision))
	minUnit := decimal.New(1, -int32(precision))
	if q.LessThan(minUnit) {
		q = minUnit
	}
	return q.InexactFloat64()
}
