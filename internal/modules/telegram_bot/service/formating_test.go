package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"scalp_bot/internal/models"
	health "scalp_bot/internal/modules/health/service"
	"scalp_bot/internal/store"
)

func TestFormatPositions(t *testing.T) {
	assert.Contains(t, formatPositions(store.Snapshot{}), "нет")

	snap := store.Snapshot{
		Levels: map[string]*models.PositionLevel{
			"ETHUSDT": {Symbol: "ETHUSDT", Direction: models.Short, Size: 0.5, EntryPrice: 2500, ExitPrice: 2470.25},
			"BTCUSDT": {Symbol: "BTCUSDT", Direction: models.Long, Size: 0.01, EntryPrice: 50000, ExitPrice: 50600},
		},
		Targets: map[string]*models.ExitTarget{
			"BTCUSDT": {Symbol: "BTCUSDT", OrderID: "8389765"},
			"ETHUSDT": {Symbol: "ETHUSDT"},
		},
	}
	out := formatPositions(snap)
	assert.Contains(t, out, "BTCUSDT LONG 0.01 @ 50000 → 50600 | DCA 0 | TP #8389765")
	assert.Contains(t, out, "ETHUSDT SHORT 0.5 @ 2500 → 2470.25 | DCA 0 | TP ручной")
	assert.Less(t, strings.Index(out, "BTCUSDT"), strings.Index(out, "ETHUSDT"))
}

func TestFormatTrades(t *testing.T) {
	assert.Contains(t, formatTrades(nil, 5), "нет")

	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	recs := []models.TradeRecord{
		{Timestamp: ts, Symbol: "AAAUSDT", Direction: models.Long, EntryPrice: 1, ExitPrice: 1.01, RealizedPnL: 1.5, Reason: models.ReasonTakeProfit},
		{Timestamp: ts.Add(time.Hour), Symbol: "BBBUSDT", Direction: models.Short, EntryPrice: 2, ExitPrice: 1.98, RealizedPnL: 2.25, Reason: models.ReasonOrphan},
		{Timestamp: ts.Add(2 * time.Hour), Symbol: "CCCUSDT", Direction: models.Long, EntryPrice: 3, ExitPrice: 3.03, RealizedPnL: -0.5, Reason: models.ReasonManual},
	}

	out := formatTrades(recs, 2)
	assert.Contains(t, out, "(2)")
	assert.NotContains(t, out, "AAAUSDT")
	assert.Less(t, strings.Index(out, "CCCUSDT"), strings.Index(out, "BBBUSDT"))
	assert.Contains(t, out, "Итого: 1.75 USDT")

	assert.Contains(t, formatTrades(recs, 50), "(3)")
}

func TestFormatStatus(t *testing.T) {
	h := health.NewState()
	assert.Contains(t, formatStatus(h), "Последний цикл: ещё не было")

	h.TouchCycle(time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), 2)
	out := formatStatus(h)
	assert.Contains(t, out, "Циклов: 1")
	assert.Contains(t, out, "Позиций: 2")
	assert.Contains(t, out, "2026-03-02T10:00:00Z")
}

func TestTradesLimit(t *testing.T) {
	assert.Equal(t, defaultTradesShown, tradesLimit(""))
	assert.Equal(t, defaultTradesShown, tradesLimit("abc"))
	assert.Equal(t, defaultTradesShown, tradesLimit("-3"))
	assert.Equal(t, 3, tradesLimit(" 3 "))
}
