package runner

import (
	"context"
	"time"

	"go.uber.org/zap"

	"scalp_bot/internal/models"
	"scalp_bot/internal/notify"
)

const orphanReportEvery = time.Hour

// checkOrphans: позиции на бирже, о которых движок ничего не знает.
// В плюсе закрываем, в минусе только сообщаем оператору.
func (r *Runner) checkOrphans(ctx context.Context, st *EngineState) {
	now := r.now()
	for _, sym := range sortedPositions(st) {
		if st.Tracked(sym) || st.touched[sym] {
			continue
		}
		pos := st.Positions[sym]
		r.safe(sym, "orphan", func() {
			if pos.UnrealizedPnL > 0 {
				r.log.Info("closing profitable orphan", zap.String("symbol", sym), zap.Float64("pnl", pos.UnrealizedPnL))
				if err := r.closeAndRecord(ctx, st, sym, models.ReasonOrphan, pos.MarkPrice); err != nil {
					r.log.Error("orphan close failed", zap.String("symbol", sym), zap.Error(err))
				}
				return
			}

			if last, ok := st.orphanReportedAt[sym]; ok && now.Sub(last) < orphanReportEvery {
				return
			}
			st.orphanReportedAt[sym] = now
			r.log.Warn("orphan position", zap.String("symbol", sym), zap.Float64("pnl", pos.UnrealizedPnL))
			r.notifier.Sendf(ctx, notify.CategoryError,
				"⚠️ [%s] Позиция без TP: %s %.6f @ %.6f, PnL=%.4f USDT. Не закрываю в минусе.",
				sym, pos.Direction, pos.Size, pos.EntryPrice, pos.UnrealizedPnL)
		})
	}
	st.OrphanCheckedAt = now
}
