package helper

import (
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// NormTF приводит таймфрейм к виду, который понимает биржа.
func NormTF(raw string) string {
	s := strings.TrimSpace(strings.ToLower(raw))
	s = strings.TrimPrefix(s, "candle")
	switch s {
	case "60m", "1h":
		return "1h"
	case "1", "1m", "":
		return "1m"
	case "5":
		return "5m"
	case "15":
		return "15m"
	default:
		return s
	}
}

func RoundDownToTick(px, tick float64) float64 {
	if tick <= 0 {
		return px
	}
	steps := math.Floor(px/tick + 1e-12)
	return decimal.NewFromFloat(steps).Mul(decimal.NewFromFloat(tick)).InexactFloat64()
}

// FormatQty: строка для API без экспоненты и хвостовых нулей.
func FormatQty(qty float64, precision int) string {
	if precision < 0 {
		precision = 0
	}
	return decimal.NewFromFloat(qty).Truncate(int32(precision)).String()
}

// FormatPrice округляет к ближайшему тику.
func FormatPrice(px, tick float64, precision int) string {
	d := decimal.NewFromFloat(px)
	if tick > 0 {
		t := decimal.NewFromFloat(tick)
		d = d.Div(t).Round(0).Mul(t)
	}
	if precision >= 0 {
		d = d.Round(int32(precision))
	}
	return d.String()
}

// SortedKeys: для детерминированного обхода map по символам.
func SortedKeys[V any](m map[string]V) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
