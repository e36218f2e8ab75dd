package runner

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"scalp_bot/internal/models"
	"scalp_bot/internal/notify"
	"scalp_bot/internal/store"
	"scalp_bot/internal/strategy"
	"scalp_bot/pkg/id"
	"scalp_bot/pkg/retry"
)

// scanEntries идёт по символам в порядке приоритета и открывает не больше
// одной позиции за цикл.
func (r *Runner) scanEntries(ctx context.Context, st *EngineState) {
	for _, sym := range st.Symbols {
		if _, open := st.Positions[sym]; open || st.Tracked(sym) || st.touched[sym] {
			continue
		}
		opened := false
		r.safe(sym, "entry", func() {
			ok, err := r.tryOpen(ctx, st, sym)
			if err != nil {
				r.log.Warn("entry failed", zap.String("symbol", sym), zap.Error(err))
			}
			opened = ok
		})
		if opened {
			return
		}
	}
}

// tryOpen: фильтры, сигнал, вход по рынку, TP. true: позиция открыта.
func (r *Runner) tryOpen(ctx context.Context, st *EngineState, sym string) (bool, error) {
	profile := r.profiles.For(sym)

	candles, err := retry.Call(ctx, r.retry, "candles "+sym, retry.KindHistory, func(ctx context.Context) ([]models.Candle, error) {
		return r.gw.Candles(ctx, sym, r.cfg.Interval, r.cfg.CandleLimit)
	})
	if err != nil {
		r.log.Debug("no candles, skip", zap.String("symbol", sym), zap.Error(err))
		return false, nil
	}
	px, err := retry.Call(ctx, r.retry, "price "+sym, retry.KindQuery, func(ctx context.Context) (models.Price, error) {
		return r.gw.Price(ctx, sym)
	})
	if err != nil {
		r.log.Debug("no price, skip", zap.String("symbol", sym), zap.Error(err))
		return false, nil
	}

	if strategy.ExtremeMove(candles, r.cfg.VolatilityWindow, r.cfg.VolatilityThreshold) {
		r.log.Info("extreme volatility, skip", zap.String("symbol", sym))
		return false, nil
	}
	if !r.spreadOK(ctx, sym, profile) {
		return false, nil
	}

	sig := r.detector.Evaluate(sym, candles, px.Mid, profile)
	if !sig.HasTrade() {
		r.log.Debug("no entry", zap.String("symbol", sym), zap.String("reason", sig.Reason))
		return false, nil
	}
	dir := models.DirectionFromSide(sig.Side)

	exit, forced, err := CalcExitPrice(sig.Close, sig.ATR, dir, r.exitParams())
	if err != nil {
		return false, err
	}
	if r.cfg.MinPotentialProfit > 0 && PotentialProfit(sig.Close, exit, r.cfg.FeeRate) < r.cfg.MinPotentialProfit {
		r.log.Info("potential profit too small, skip",
			zap.String("symbol", sym), zap.Float64("close", sig.Close), zap.Float64("exit", exit))
		return false, nil
	}

	if st.Available < r.cfg.MarginPerTrade {
		r.log.Warn("insufficient balance",
			zap.Float64("available", st.Available), zap.Float64("margin", r.cfg.MarginPerTrade))
		r.notifier.Sendf(ctx, notify.CategoryError,
			"⚠️ Недостаточно средств: доступно %.2f USDT, нужно %.2f USDT", st.Available, r.cfg.MarginPerTrade)
		return false, nil
	}

	notional := r.cfg.MarginPerTrade * float64(r.cfg.Leverage)
	qty, err := CalcQuantity(notional, px.Mid, r.precision(st, sym))
	if err != nil {
		return false, err
	}

	if err := r.retry.Do(ctx, "leverage "+sym, retry.KindTrade, func(ctx context.Context) error {
		return r.gw.SetLeverage(ctx, sym, r.cfg.Leverage)
	}); err != nil {
		r.log.Warn("set leverage failed", zap.String("symbol", sym), zap.Error(err))
	}

	r.log.Info("entry signal",
		zap.String("symbol", sym),
		zap.String("direction", string(dir)),
		zap.Float64("qty", qty),
		zap.Float64("mid", px.Mid),
		zap.String("reason", sig.Reason))

	req := models.OrderRequest{
		Symbol:        sym,
		Side:          dir.EntrySide(),
		Type:          models.OrderMarket,
		Size:          qty,
		ClientOrderID: id.ClientOrder("entry"),
	}
	res, err := retry.Call(ctx, r.retry, "entry "+sym, retry.KindTrade, func(ctx context.Context) (models.OrderResult, error) {
		return r.gw.CreateOrder(ctx, req)
	})
	if err == nil && !res.Filled() {
		err = fmt.Errorf("order %s status %s", res.OrderID, res.Status)
	}
	if err != nil {
		r.notifier.Sendf(ctx, notify.CategoryError, "❗️ [%s] Ошибка открытия ордера: %v", sym, err)
		return false, err
	}
	r.m.OrderPlaced("entry", string(dir.EntrySide()))

	entry := res.AvgPrice
	if entry <= 0 {
		entry = sig.Close
	}
	size := qty
	if res.FilledSize > 0 {
		size = res.FilledSize
	}
	if exit, forced, err = CalcExitPrice(entry, sig.ATR, dir, r.exitParams()); err != nil {
		return true, err
	}
	if forced {
		r.log.Warn("exit forced to max bound", zap.String("symbol", sym), zap.Float64("exit", exit))
	}

	now := r.now()
	lvl := &models.PositionLevel{
		Symbol:       sym,
		Direction:    dir,
		EntryPrice:   entry,
		Size:         size,
		OriginalSize: size,
		ExitPrice:    exit,
		ATR:          sig.ATR,
		OpenedAt:     now,
	}
	if err := r.store.Update(func(w store.Writer) error { return w.PutLevel(lvl) }); err != nil {
		r.notifier.Sendf(ctx, notify.CategoryError, "❗️ [%s] Позиция открыта, но уровень не сохранён: %v", sym, err)
		return true, err
	}
	st.Levels[sym] = lvl
	pos := models.Position{Symbol: sym, Direction: dir, Size: size, EntryPrice: entry, MarkPrice: entry}
	st.Positions[sym] = pos
	st.LastSeen[sym] = pos
	st.touched[sym] = true

	target, err := r.tp.Open(ctx, st, lvl)
	if err != nil {
		r.log.Error("tp open failed", zap.String("symbol", sym), zap.Error(err))
	}

	st.LastTradeAt = now
	st.Daily.Opened++

	tpMode := "лимитный ордер"
	if target.Manual() {
		tpMode = "ручной"
	}
	r.notifier.Sendf(ctx, notify.CategoryOpen,
		"✅ [%s] OPEN %s @ %.6f | size=%.6f lev=%dx | TP=%.6f (%s) | ATR=%.6f\n%s",
		sym, dir, entry, size, r.cfg.Leverage, exit, tpMode, sig.ATR, sig.Reason)
	return true, nil
}

// spreadOK: спред по стакану не шире лимита профиля (в процентах).
func (r *Runner) spreadOK(ctx context.Context, sym string, p models.SymbolProfile) bool {
	book, err := retry.Call(ctx, r.retry, "orderbook "+sym, retry.KindQuery, func(ctx context.Context) (models.OrderBook, error) {
		return r.gw.OrderBook(ctx, sym, r.cfg.OrderBookDepth)
	})
	if err != nil {
		r.log.Debug("order book unavailable, skip", zap.String("symbol", sym), zap.Error(err))
		return false
	}
	spread, ok := book.SpreadPct()
	if !ok {
		return false
	}
	if spread > p.SpreadLimitPct/100 {
		r.log.Info("spread too wide, skip",
			zap.String("symbol", sym), zap.Float64("spread_pct", spread*100), zap.Float64("limit_pct", p.SpreadLimitPct))
		return false
	}
	return true
}

// precision количества: метаданные биржи, иначе профиль символа.
func (r *Runner) precision(st *EngineState, sym string) int {
	if m, ok := st.Meta[sym]; ok && m.StepSize > 0 {
		return m.QtyPrecision
	}
	return r.profiles.For(sym).QtyPrecision
}

func (r *Runner) exitParams() ExitParams {
	return ExitParams{ATRMult: r.cfg.ATRTPMult, MaxPct: r.cfg.MaxTPPct, FeeRate: r.cfg.FeeRate}
}
