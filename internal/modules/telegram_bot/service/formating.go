package service

import (
	"fmt"
	"strings"
	"time"

	"scalp_bot/internal/helper"
	"scalp_bot/internal/models"
	health "scalp_bot/internal/modules/health/service"
	"scalp_bot/internal/store"
)

const helpText = "Команды:\n" +
	"/status - состояние движка\n" +
	"/positions - отслеживаемые позиции и TP\n" +
	"/trades [N] - последние закрытые сделки"

func formatStatus(h *health.State) string {
	last := "ещё не было"
	if t := h.LastCycle(); !t.IsZero() {
		last = t.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf(
		"🩺 Статус\n"+
			"Готов: %s\n"+
			"Циклов: %d\n"+
			"Последний цикл: %s\n"+
			"Позиций: %d\n"+
			"Аптайм: %s",
		yesNo(h.Ready()),
		h.Cycles(),
		last,
		h.Tracked(),
		h.Uptime().Truncate(time.Second),
	)
}

func formatPositions(snap store.Snapshot) string {
	if len(snap.Levels) == 0 {
		return "📭 Отслеживаемых позиций нет"
	}
	var b strings.Builder
	b.WriteString("📊 Позиции:\n")
	for _, sym := range helper.SortedKeys(snap.Levels) {
		l := snap.Levels[sym]
		tp := "TP нет"
		if t, ok := snap.Targets[sym]; ok && t != nil {
			tp = "TP ручной"
			if !t.Manual() {
				tp = "TP #" + t.OrderID
			}
		}
		fmt.Fprintf(&b, "- %s %s %s @ %s → %s | DCA %d | %s\n",
			sym, l.Direction, f6(l.Size), f6(l.EntryPrice), f6(l.ExitPrice), l.DcaCount(), tp)
	}
	return b.String()
}

// formatTrades: последние n сделок, свежие сверху.
func formatTrades(recs []models.TradeRecord, n int) string {
	if len(recs) == 0 {
		return "📭 Сделок пока нет"
	}
	if n > len(recs) {
		n = len(recs)
	}
	var (
		b     strings.Builder
		total float64
	)
	fmt.Fprintf(&b, "💰 Последние сделки (%d):\n", n)
	for i := len(recs) - 1; i >= len(recs)-n; i-- {
		r := recs[i]
		total += r.RealizedPnL
		fmt.Fprintf(&b, "- %s %s %s | %s → %s | %s USDT (%s)\n",
			r.Timestamp.UTC().Format("01-02 15:04"), r.Symbol, r.Direction,
			f6(r.EntryPrice), f6(r.ExitPrice), f2(r.RealizedPnL), r.Reason)
	}
	fmt.Fprintf(&b, "Итого: %s USDT", f2(total))
	return b.String()
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}

func f2(v float64) string { return fmt.Sprintf("%.2f", v) }

func f6(v float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.6f", v), "0"), ".")
}
