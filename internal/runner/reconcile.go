package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scalp_bot/internal/models"
	"scalp_bot/internal/notify"
	"scalp_bot/internal/store"
	"scalp_bot/pkg/id"
	"scalp_bot/pkg/retry"
)

// closeInfo: всё, что нужно для записи подтверждённого закрытия.
type closeInfo struct {
	symbol    string
	direction models.Direction
	entry     float64
	exit      float64
	target    float64
	pnl       float64
	source    models.PnLSource
	openedAt  time.Time
	reason    models.CloseReason
}

// pullPositions обновляет снимок позиций. false: биржа недоступна,
// сверку в этом цикле не делаем.
func (r *Runner) pullPositions(ctx context.Context, st *EngineState) bool {
	acc, err := retry.Call(ctx, r.retry, "account", retry.KindQuery, r.gw.Account)
	if err != nil {
		r.log.Warn("positions unavailable, reconciliation skipped", zap.Error(err))
		return false
	}
	st.setPositions(acc, r.cfg.DustThreshold)
	return true
}

// reconcileVanished: уровень есть, а позиции на бирже нет: её закрыла
// биржа (TP исполнился) или человек руками.
func (r *Runner) reconcileVanished(ctx context.Context, st *EngineState) {
	for _, sym := range sortedLevels(st) {
		if _, open := st.Positions[sym]; open {
			continue
		}
		r.safe(sym, "vanished", func() {
			if err := r.recordVanished(ctx, st, st.Levels[sym]); err != nil {
				r.log.Error("record vanished position failed", zap.String("symbol", sym), zap.Error(err))
			}
		})
	}
}

func (r *Runner) recordVanished(ctx context.Context, st *EngineState, lvl *models.PositionLevel) error {
	sym := lvl.Symbol
	target := st.Targets[sym]

	info := closeInfo{
		symbol:    sym,
		direction: lvl.Direction,
		entry:     lvl.EntryPrice,
		target:    lvl.ExitPrice,
		openedAt:  lvl.OpenedAt,
		reason:    models.ReasonManual,
		source:    models.PnLUnrealized,
	}
	if last, ok := st.LastSeen[sym]; ok {
		info.exit = last.MarkPrice
		info.pnl = last.UnrealizedPnL
	}

	if !target.Manual() {
		info.reason = models.ReasonTakeProfit
		info.exit = target.Price
		if pnl, ok := r.realizedPnL(ctx, sym, target.OrderID); ok {
			info.pnl, info.source = pnl, models.PnLRealized
		}
	}
	if info.exit <= 0 {
		info.exit = info.target
	}

	r.log.Info("position gone on exchange",
		zap.String("symbol", sym), zap.String("reason", string(info.reason)), zap.Float64("pnl", info.pnl))
	return r.finishClose(ctx, st, info)
}

// evaluateCloses закрывает позиции, у которых mid пересёк цель выхода.
func (r *Runner) evaluateCloses(ctx context.Context, st *EngineState) {
	for _, sym := range sortedLevels(st) {
		lvl := st.Levels[sym]
		pos, open := st.Positions[sym]
		if !open || st.touched[sym] {
			continue
		}
		r.safe(sym, "close", func() {
			px, err := retry.Call(ctx, r.retry, "price "+sym, retry.KindQuery, func(ctx context.Context) (models.Price, error) {
				return r.gw.Price(ctx, sym)
			})
			if err != nil {
				r.log.Warn("price unavailable, close check skipped", zap.String("symbol", sym), zap.Error(err))
				return
			}

			dir := lvl.Direction
			if pos.Direction != dir {
				r.log.Warn("direction mismatch, using exchange side",
					zap.String("symbol", sym),
					zap.String("local", string(dir)),
					zap.String("exchange", string(pos.Direction)))
				dir = pos.Direction
			}
			if !crossed(dir, px.Mid, lvl.ExitPrice) {
				return
			}

			// биржевой TP должен был сработать сам; закрываем страховкой
			reason := models.ReasonTakeProfit
			if !st.Targets[sym].Manual() {
				reason = models.ReasonBackup
			}
			if err := r.closeAndRecord(ctx, st, sym, reason, px.Mid); err != nil {
				r.log.Error("close failed", zap.String("symbol", sym), zap.Error(err))
			}
		})
	}
}

func crossed(dir models.Direction, mid, exit float64) bool {
	if mid <= 0 || exit <= 0 {
		return false
	}
	if dir == models.Short {
		return mid <= exit
	}
	return mid >= exit
}

// closeAndRecord закрывает позицию и пишет одну запись в историю.
// Символ без позиции в снимке уже закрыт: повторный вызов ничего не делает.
func (r *Runner) closeAndRecord(ctx context.Context, st *EngineState, sym string, reason models.CloseReason, mid float64) error {
	pos, open := st.Positions[sym]
	if !open {
		return nil
	}

	res, err := r.executeClose(ctx, st, pos)
	if err != nil {
		return err
	}

	info := closeInfo{
		symbol:    sym,
		direction: pos.Direction,
		entry:     pos.EntryPrice,
		exit:      res.AvgPrice,
		reason:    reason,
	}
	if info.exit <= 0 {
		info.exit = mid
	}
	if info.exit <= 0 {
		info.exit = pos.MarkPrice
	}
	if lvl := st.Levels[sym]; lvl != nil {
		info.entry = lvl.EntryPrice
		info.target = lvl.ExitPrice
		info.openedAt = lvl.OpenedAt
	}
	info.pnl, info.source = pos.UnrealizedPnL, models.PnLUnrealized
	if pnl, ok := r.realizedPnL(ctx, sym, res.OrderID); ok {
		info.pnl, info.source = pnl, models.PnLRealized
	}
	return r.finishClose(ctx, st, info)
}

// executeClose: reduce-only маркет, затем ClosePosition, затем закрытие
// частями. После каждого шага позиция перепроверяется по свежему аккаунту,
// части считаются от остатка, а не от исходного размера.
func (r *Runner) executeClose(ctx context.Context, st *EngineState, pos models.Position) (models.OrderResult, error) {
	sym := pos.Symbol
	remaining := pos
	steps := []struct {
		name string
		run  func(ctx context.Context) (models.OrderResult, error)
	}{
		{"market", func(ctx context.Context) (models.OrderResult, error) {
			return r.reduce(ctx, sym, pos.Direction, pos.Size)
		}},
		{"close_position", func(ctx context.Context) (models.OrderResult, error) {
			return retry.Call(ctx, r.retry, "close_position "+sym, retry.KindTrade, func(ctx context.Context) (models.OrderResult, error) {
				return r.gw.ClosePosition(ctx, sym)
			})
		}},
		{"split", func(ctx context.Context) (models.OrderResult, error) {
			return r.closeInParts(ctx, st, remaining)
		}},
	}

	for _, step := range steps {
		res, err := step.run(ctx)
		if err != nil {
			r.log.Warn("close step failed", zap.String("symbol", sym), zap.String("step", step.name), zap.Error(err))
		} else {
			r.m.OrderPlaced("close", string(pos.Direction.ExitSide()))
		}
		left, closed := r.verifyClosed(ctx, sym)
		if closed {
			r.log.Info("close verified", zap.String("symbol", sym), zap.String("step", step.name))
			return res, nil
		}
		if left.Size > 0 {
			remaining = left
		}
		if ctx.Err() != nil {
			break
		}
	}

	r.m.CloseUnverified()
	r.notifier.Sendf(ctx, notify.CategoryError,
		"🚨 [%s] Позиция НЕ закрыта после всех попыток (%s %.6f). Нужна ручная проверка!",
		sym, pos.Direction, pos.Size)
	return models.OrderResult{}, fmt.Errorf("close %s: %w", sym, models.ErrCloseUnverified)
}

func (r *Runner) reduce(ctx context.Context, sym string, dir models.Direction, size float64) (models.OrderResult, error) {
	req := models.OrderRequest{
		Symbol:        sym,
		Side:          dir.ExitSide(),
		Type:          models.OrderMarket,
		Size:          size,
		ReduceOnly:    true,
		ClientOrderID: id.ClientOrder("close"),
	}
	return retry.Call(ctx, r.retry, "close "+sym, retry.KindTrade, func(ctx context.Context) (models.OrderResult, error) {
		return r.gw.CreateOrder(ctx, req)
	})
}

func (r *Runner) closeInParts(ctx context.Context, st *EngineState, pos models.Position) (models.OrderResult, error) {
	parts := r.cfg.CloseSplitParts
	if parts < 1 {
		parts = 1
	}
	prec := r.precision(st, pos.Symbol)
	part := RoundQuantity(pos.Size/float64(parts), prec)

	var (
		last    models.OrderResult
		lastErr error
		sent    float64
	)
	for i := 0; i < parts; i++ {
		qty := part
		if i == parts-1 {
			qty = RoundQuantity(pos.Size-sent, prec)
		}
		if qty <= 0 || sent >= pos.Size {
			break
		}
		res, err := r.reduce(ctx, pos.Symbol, pos.Direction, qty)
		if err != nil {
			lastErr = err
			continue
		}
		last = res
		sent += qty
	}
	if sent == 0 && lastErr != nil {
		return last, lastErr
	}
	return last, nil
}

// verifyClosed: true, если позиции больше нет. Иначе отдаёт остаток
// (пустой, если аккаунт недоступен).
func (r *Runner) verifyClosed(ctx context.Context, sym string) (models.Position, bool) {
	if err := wait(ctx, r.cfg.CloseVerifyDelay); err != nil {
		return models.Position{}, false
	}
	acc, err := retry.Call(ctx, r.retry, "verify "+sym, retry.KindQuery, r.gw.Account)
	if err != nil {
		return models.Position{}, false
	}
	left, open := acc.OpenPositions(r.cfg.DustThreshold)[sym]
	return left, !open
}

// realizedPnL: PnL по исполнениям ордера, если биржа его знает.
func (r *Runner) realizedPnL(ctx context.Context, sym, orderID string) (float64, bool) {
	if orderID == "" {
		return 0, false
	}
	pnl, err := retry.Call(ctx, r.retry, "realized_pnl "+sym, retry.KindHistory, func(ctx context.Context) (float64, error) {
		return r.gw.RealizedPnL(ctx, sym, orderID)
	})
	if err != nil {
		if !errors.Is(err, models.ErrUnavailable) {
			r.log.Warn("realized pnl unavailable", zap.String("symbol", sym), zap.Error(err))
		}
		return 0, false
	}
	return pnl, true
}

// finishClose снимает цель, одним батчем удаляет уровень и пишет
// историю, потом обновляет память.
func (r *Runner) finishClose(ctx context.Context, st *EngineState, info closeInfo) error {
	sym := info.symbol
	if t := st.Targets[sym]; t != nil {
		if err := r.tp.cancelOrder(ctx, t); err != nil {
			r.log.Warn("cancel tp on close failed", zap.String("symbol", sym), zap.Error(err))
		}
		r.tp.cancelStale(ctx, sym, t.Stale)
	}

	now := r.now()
	rec := models.TradeRecord{
		Timestamp:   now,
		Symbol:      sym,
		Direction:   info.direction,
		EntryPrice:  info.entry,
		ExitPrice:   info.exit,
		ExitTarget:  info.target,
		RealizedPnL: info.pnl,
		PnLSource:   info.source,
		Reason:      info.reason,
	}
	if !info.openedAt.IsZero() {
		rec.HoldingDuration = now.Sub(info.openedAt)
	}

	err := r.store.Update(func(w store.Writer) error {
		if err := w.DeleteLevel(sym); err != nil {
			return err
		}
		if err := w.DeleteTarget(sym); err != nil {
			return err
		}
		return w.AppendTrade(&rec)
	})
	if err != nil {
		r.notifier.Sendf(ctx, notify.CategoryError, "❗️ [%s] Закрытие не сохранено: %v", sym, err)
		return err
	}

	st.forget(sym)
	st.touched[sym] = true
	st.LastTradeAt = now
	st.Daily.Closed++
	st.Daily.PnL += info.pnl

	if err := r.journal.RecordTrade(ctx, rec); err != nil {
		r.log.Warn("journal trade failed", zap.String("symbol", sym), zap.Error(err))
	}
	r.m.Closed(string(info.reason))
	r.notifier.Sendf(ctx, notify.CategoryClose,
		"💰 [%s] CLOSE %s (%s) | entry=%.6f exit=%.6f | PnL=%.4f USDT (%s) | %s",
		sym, info.direction, info.reason, info.entry, info.exit, info.pnl, info.source,
		rec.HoldingDuration.Truncate(time.Second))
	return nil
}
