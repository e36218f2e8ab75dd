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

// DCAThreshold: на сколько (в долях) позиция должна уйти в минус для
// следующего усреднения: base + step за каждое уже сделанное.
func DCAThreshold(base, step float64, completed int) float64 {
	return base + step*float64(completed)
}

// AveragePrice: средневзвешенная по объёму цена всех входов.
func AveragePrice(entries []models.DcaEntry) float64 {
	var notional, size float64
	for _, e := range entries {
		notional += e.Price * e.Size
		size += e.Size
	}
	if size <= 0 {
		return 0
	}
	return notional / size
}

func (r *Runner) evaluateDCA(ctx context.Context, st *EngineState) {
	if !r.cfg.DCA.Enabled {
		return
	}
	for _, sym := range sortedLevels(st) {
		lvl := st.Levels[sym]
		pos, open := st.Positions[sym]
		if !open || st.touched[sym] {
			continue
		}
		r.safe(sym, "dca", func() {
			if err := r.tryDCA(ctx, st, lvl, pos); err != nil {
				r.log.Warn("dca failed", zap.String("symbol", sym), zap.Error(err))
			}
		})
	}
}

// tryDCA докупает позицию, если она достаточно ушла в минус. Пока ордер
// не исполнен, состояние не меняется.
func (r *Runner) tryDCA(ctx context.Context, st *EngineState, lvl *models.PositionLevel, pos models.Position) error {
	d := r.cfg.DCA
	done := lvl.DcaCount()
	if done >= d.MaxEntries {
		return nil
	}
	now := r.now()
	if now.Sub(lvl.LastEntryAt()) < d.MinInterval {
		return nil
	}

	loss := pos.LossPct(pos.MarkPrice)
	threshold := DCAThreshold(d.BaseMaxLossPct, d.StepPct, done)
	if loss > -threshold {
		return nil
	}

	dir := lvl.Direction
	if pos.Direction != dir {
		r.log.Warn("direction mismatch, using exchange side",
			zap.String("symbol", lvl.Symbol),
			zap.String("local", string(dir)),
			zap.String("exchange", string(pos.Direction)))
		dir = pos.Direction
	}

	size := RoundQuantity(lvl.OriginalSize*d.SizeMultiplier, r.precision(st, lvl.Symbol))
	if size <= 0 {
		return fmt.Errorf("dca size for %s is zero", lvl.Symbol)
	}

	r.log.Info("dca triggered",
		zap.String("symbol", lvl.Symbol),
		zap.Float64("loss_pct", loss),
		zap.Float64("threshold", threshold),
		zap.Int("entry", done+1),
		zap.Float64("size", size))

	req := models.OrderRequest{
		Symbol:        lvl.Symbol,
		Side:          dir.EntrySide(),
		Type:          models.OrderMarket,
		Size:          size,
		ClientOrderID: id.ClientOrder("dca"),
	}
	res, err := retry.Call(ctx, r.retry, "dca.order "+lvl.Symbol, retry.KindTrade, func(ctx context.Context) (models.OrderResult, error) {
		return r.gw.CreateOrder(ctx, req)
	})
	if err == nil && !res.Filled() {
		err = fmt.Errorf("order %s status %s", res.OrderID, res.Status)
	}
	if err != nil {
		r.notifier.Sendf(ctx, notify.CategoryError, "❗️ [%s] Усреднение не удалось: %v", lvl.Symbol, err)
		return err
	}
	r.m.OrderPlaced("dca", string(dir.EntrySide()))

	fill := res.AvgPrice
	if fill <= 0 {
		fill = pos.MarkPrice
	}
	if fill <= 0 {
		fill = lvl.EntryPrice
	}
	filled := size
	if res.FilledSize > 0 {
		filled = res.FilledSize
	}

	state := dcaStateOf(lvl)
	state.Entries = append(state.Entries, models.DcaEntry{Price: fill, Size: filled, Time: now})
	state.EntryCount = done + 1
	state.LastEntryAt = now
	state.AveragePrice = AveragePrice(state.Entries)
	state.TotalSize = 0
	for _, e := range state.Entries {
		state.TotalSize += e.Size
	}

	atr := r.freshATR(ctx, lvl.Symbol)
	if atr <= 0 {
		atr = lvl.ATR
	}
	exit, forced, err := CalcExitPrice(state.AveragePrice, atr, dir, r.exitParams())
	if err != nil {
		// ордер уже исполнен; оставляем старую цель, чтобы не потерять позицию
		r.log.Error("dca exit calc failed", zap.String("symbol", lvl.Symbol), zap.Error(err))
		exit = lvl.ExitPrice
	}
	if forced {
		r.log.Warn("exit forced to max bound", zap.String("symbol", lvl.Symbol), zap.Float64("exit", exit))
	}

	next := *lvl
	next.Direction = dir
	next.EntryPrice = state.AveragePrice
	next.Size = state.TotalSize
	next.ExitPrice = exit
	next.ATR = atr
	next.Dca = state

	rec := models.DcaRecord{
		Timestamp:     now,
		Symbol:        lvl.Symbol,
		Direction:     dir,
		OriginalPrice: state.Entries[0].Price,
		DcaPrice:      fill,
		DcaSize:       filled,
		AveragePrice:  state.AveragePrice,
		NewExit:       exit,
		EntryIndex:    state.EntryCount,
	}
	err = r.store.Update(func(w store.Writer) error {
		if err := w.PutLevel(&next); err != nil {
			return err
		}
		return w.AppendDCA(&rec)
	})
	if err != nil {
		r.notifier.Sendf(ctx, notify.CategoryError, "❗️ [%s] Усреднение исполнено, но не сохранено: %v", lvl.Symbol, err)
		return err
	}
	st.Levels[lvl.Symbol] = &next
	st.touched[lvl.Symbol] = true

	if _, err := r.tp.Open(ctx, st, &next); err != nil {
		r.log.Error("dca: reopen tp failed", zap.String("symbol", lvl.Symbol), zap.Error(err))
	}

	r.m.DCAEntry()
	if err := r.journal.RecordDCA(ctx, rec); err != nil {
		r.log.Warn("journal dca failed", zap.String("symbol", lvl.Symbol), zap.Error(err))
	}
	r.notifier.Sendf(ctx, notify.CategoryDCA,
		"➕ [%s] DCA #%d %s | %.6f @ %.6f | avg=%.6f | TP=%.6f",
		lvl.Symbol, state.EntryCount, dir, filled, fill, state.AveragePrice, exit)
	return nil
}

// dcaStateOf копирует историю входов; у позиции без усреднений первым
// входом считается открытие.
func dcaStateOf(lvl *models.PositionLevel) *models.DcaState {
	if lvl.Dca != nil {
		cp := *lvl.Dca
		cp.Entries = append([]models.DcaEntry(nil), lvl.Dca.Entries...)
		return &cp
	}
	return &models.DcaState{
		Symbol:       lvl.Symbol,
		AveragePrice: lvl.EntryPrice,
		TotalSize:    lvl.OriginalSize,
		LastEntryAt:  lvl.OpenedAt,
		Entries: []models.DcaEntry{{
			Price: lvl.EntryPrice,
			Size:  lvl.OriginalSize,
			Time:  lvl.OpenedAt,
		}},
	}
}

func (r *Runner) freshATR(ctx context.Context, symbol string) float64 {
	candles, err := retry.Call(ctx, r.retry, "candles "+symbol, retry.KindHistory, func(ctx context.Context) ([]models.Candle, error) {
		return r.gw.Candles(ctx, symbol, r.cfg.Interval, r.cfg.CandleLimit)
	})
	if err != nil {
		r.log.Warn("fresh atr unavailable", zap.String("symbol", symbol), zap.Error(err))
		return 0
	}
	return strategy.CandleATR(candles, strategy.DefaultConfig().ATRPeriod)
}
