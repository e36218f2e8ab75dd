package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"scalp_bot/internal/metrics"
	"scalp_bot/internal/models"
	"scalp_bot/internal/store"
	"scalp_bot/pkg/id"
	"scalp_bot/pkg/retry"
)

// TPManager держит не больше одной цели выхода на символ.
// Биржевой лимитник reduce-only; если его не поставить, цель остаётся
// локальной ("ручной") и закрытие делает сверка.
type TPManager struct {
	gw    Gateway
	store StateStore
	retry *retry.Policy
	log   *zap.Logger
	m     *metrics.Metrics
	now   func() time.Time
}

func NewTPManager(gw Gateway, st StateStore, rp *retry.Policy, log *zap.Logger, m *metrics.Metrics, now func() time.Time) *TPManager {
	if now == nil {
		now = time.Now
	}
	return &TPManager{gw: gw, store: st, retry: rp, log: log, m: m, now: now}
}

// Open ставит цель по уровню. Старая цель снимается первой; если биржа
// не дала её снять, id остаётся в Stale новой цели и снимается в Resync.
func (t *TPManager) Open(ctx context.Context, st *EngineState, lvl *models.PositionLevel) (*models.ExitTarget, error) {
	var stale []string
	if prev := st.Targets[lvl.Symbol]; prev != nil {
		stale = t.cancelStale(ctx, prev.Symbol, prev.Stale)
		if err := t.cancelOrder(ctx, prev); err != nil {
			t.log.Warn("cancel previous tp failed",
				zap.String("symbol", lvl.Symbol), zap.String("order_id", prev.OrderID), zap.Error(err))
			stale = append(stale, prev.OrderID)
		}
	}

	target := &models.ExitTarget{
		Symbol:    lvl.Symbol,
		Price:     lvl.ExitPrice,
		Side:      lvl.Direction.ExitSide(),
		Size:      lvl.Size,
		CreatedAt: t.now(),
		OpenedAt:  lvl.OpenedAt,
		Stale:     stale,
	}

	req := models.OrderRequest{
		Symbol:        lvl.Symbol,
		Side:          target.Side,
		Type:          models.OrderLimit,
		Size:          target.Size,
		Price:         target.Price,
		ReduceOnly:    true,
		ClientOrderID: id.ClientOrder("tp"),
	}
	res, err := retry.Call(ctx, t.retry, "tp.create "+lvl.Symbol, retry.KindTrade, func(ctx context.Context) (models.OrderResult, error) {
		return t.gw.CreateOrder(ctx, req)
	})
	if err != nil {
		t.log.Warn("tp order failed, manual target",
			zap.String("symbol", lvl.Symbol), zap.Float64("price", target.Price), zap.Error(err))
	} else {
		target.OrderID = res.OrderID
		t.m.OrderPlaced("tp", string(target.Side))
	}

	if err := t.store.Update(func(w store.Writer) error { return w.PutTarget(target) }); err != nil {
		return nil, err
	}
	st.Targets[lvl.Symbol] = target

	t.log.Info("tp placed",
		zap.String("symbol", lvl.Symbol),
		zap.Float64("price", target.Price),
		zap.Float64("size", target.Size),
		zap.String("order_id", target.OrderID),
		zap.Bool("manual", target.Manual()),
	)
	return target, nil
}

// Cancel снимает цель. Без ордера или если биржа его уже не знает: не ошибка.
func (t *TPManager) Cancel(ctx context.Context, st *EngineState, symbol string) error {
	target := st.Targets[symbol]
	if target == nil {
		return nil
	}
	if err := t.cancelOrder(ctx, target); err != nil {
		return err
	}
	if left := t.cancelStale(ctx, symbol, target.Stale); len(left) > 0 {
		return fmt.Errorf("tp %s: %d stale orders left", symbol, len(left))
	}
	if err := t.store.Update(func(w store.Writer) error { return w.DeleteTarget(symbol) }); err != nil {
		return err
	}
	delete(st.Targets, symbol)
	return nil
}

func (t *TPManager) cancelOrder(ctx context.Context, target *models.ExitTarget) error {
	if target.Manual() {
		return nil
	}
	err := t.retry.Do(ctx, "tp.cancel "+target.Symbol, retry.KindTrade, func(ctx context.Context) error {
		return t.gw.CancelOrder(ctx, target.Symbol, target.OrderID)
	})
	if errors.Is(err, models.ErrNotFound) {
		return nil
	}
	return err
}

// cancelStale снимает прежние ордера цели и отдаёт те, что снять не вышло.
func (t *TPManager) cancelStale(ctx context.Context, symbol string, ids []string) []string {
	var left []string
	for _, orderID := range ids {
		err := t.retry.Do(ctx, "tp.cancel_stale "+symbol, retry.KindTrade, func(ctx context.Context) error {
			return t.gw.CancelOrder(ctx, symbol, orderID)
		})
		if err != nil && !errors.Is(err, models.ErrNotFound) {
			t.log.Warn("cancel stale tp failed",
				zap.String("symbol", symbol), zap.String("order_id", orderID), zap.Error(err))
			left = append(left, orderID)
		}
	}
	return left
}

// retryStale повторяет снятие прежних ордеров у действующей цели.
func (t *TPManager) retryStale(ctx context.Context, target *models.ExitTarget) {
	if len(target.Stale) == 0 {
		return
	}
	left := t.cancelStale(ctx, target.Symbol, target.Stale)
	if len(left) == len(target.Stale) {
		return
	}
	updated := *target
	updated.Stale = left
	if err := t.store.Update(func(w store.Writer) error { return w.PutTarget(&updated) }); err != nil {
		t.log.Warn("persist stale tp list failed", zap.String("symbol", target.Symbol), zap.Error(err))
		return
	}
	target.Stale = left
}

// Resync выравнивает цели по снимку позиций: без позиции цель удаляется,
// у отслеживаемой позиции без цели она ставится заново, прежние
// неснятые ордера снимаются повторно.
func (t *TPManager) Resync(ctx context.Context, st *EngineState) {
	for _, sym := range sortedTargets(st) {
		if _, open := st.Positions[sym]; open {
			t.retryStale(ctx, st.Targets[sym])
			continue
		}
		if err := t.Cancel(ctx, st, sym); err != nil {
			t.log.Warn("resync: cancel stale tp failed", zap.String("symbol", sym), zap.Error(err))
		}
	}

	for _, sym := range sortedLevels(st) {
		if st.Targets[sym] != nil {
			continue
		}
		if _, open := st.Positions[sym]; !open {
			continue
		}
		if _, err := t.Open(ctx, st, st.Levels[sym]); err != nil {
			t.log.Warn("resync: reopen tp failed", zap.String("symbol", sym), zap.Error(err))
		}
	}
}
