package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/opentracing/opentracing-go"
	"go.uber.org/zap"

	"scalp_bot/internal/journal"
	"scalp_bot/internal/metrics"
	"scalp_bot/internal/models"
	"scalp_bot/internal/modules/health/service"
	"scalp_bot/internal/notify"
	"scalp_bot/internal/strategy"
	"scalp_bot/pkg/retry"
)

type Deps struct {
	Settings models.TradingSettings
	Profiles models.Profiles
	Gateway  Gateway
	Store    StateStore
	Journal  journal.Recorder
	Notifier notify.Notifier
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Health   *service.State
	Detector strategy.Engine
	Now      func() time.Time
}

// Runner: единственный управляющий цикл: сверка, закрытия, DCA, входы.
type Runner struct {
	cfg      models.TradingSettings
	profiles models.Profiles
	gw       Gateway
	store    StateStore
	journal  journal.Recorder
	notifier notify.Notifier
	log      *zap.Logger
	m        *metrics.Metrics
	health   *service.State
	detector strategy.Engine
	retry    *retry.Policy
	tp       *TPManager
	now      func() time.Time
}

func New(d Deps) *Runner {
	r := &Runner{
		cfg:      d.Settings,
		profiles: d.Profiles,
		gw:       d.Gateway,
		store:    d.Store,
		journal:  d.Journal,
		notifier: d.Notifier,
		log:      d.Log,
		m:        d.Metrics,
		health:   d.Health,
		detector: d.Detector,
		now:      d.Now,
	}
	if r.log == nil {
		r.log = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.journal == nil {
		r.journal = journal.Nop{}
	}
	if r.notifier == nil {
		r.notifier = notify.NewLog(r.log)
	}
	if r.detector == nil {
		r.detector = strategy.NewDetector(strategy.DefaultConfig())
	}
	if r.health == nil {
		r.health = service.NewState()
	}

	r.retry = retry.New(d.Settings.Retry.Attempts, d.Settings.Retry.Delay, r.log.Named("retry"),
		retry.WithAlert(func(ctx context.Context, op string, attempts int, err error) {
			r.notifier.Sendf(ctx, notify.CategoryError,
				"❗️ Ошибка после %d попыток в %s: %v", attempts, op, err)
		}),
		retry.WithExhaustedHook(func(op string) {
			r.m.RetryExhausted(opName(op))
		}),
		retry.WithStop(func(err error) bool {
			return errors.Is(err, models.ErrUnavailable) || errors.Is(err, models.ErrNotFound)
		}),
	)
	r.tp = NewTPManager(r.gw, r.store, r.retry, r.log.Named("tp"), r.m, r.now)
	return r
}

// opName: операция без символа, чтобы не плодить серии метрик.
func opName(op string) string {
	if i := strings.IndexByte(op, ' '); i > 0 {
		return op[:i]
	}
	return op
}

// Load поднимает состояние из хранилища.
func (r *Runner) Load() (*EngineState, error) {
	snap, err := r.store.Load()
	if err != nil {
		return nil, fmt.Errorf("load state: %w", err)
	}
	st := NewEngineState(snap)
	st.Symbols = append([]string(nil), r.cfg.Symbols...)
	r.log.Info("state loaded", zap.Int("levels", len(st.Levels)), zap.Int("targets", len(st.Targets)))
	return st, nil
}

// Run крутит циклы до отмены контекста.
func (r *Runner) Run(ctx context.Context) error {
	st, err := r.Load()
	if err != nil {
		return err
	}
	r.notifier.Send(ctx, notify.CategoryInfo, "🚀 Бот запущен")

	for {
		r.safe("", "cycle", func() { r.Cycle(ctx, st) })

		if err := wait(ctx, r.cfg.CycleInterval); err != nil {
			r.log.Info("runner stopped", zap.Int64("cycles", st.Cycle))
			return nil
		}
	}
}

// Cycle: один проход. Закрытия и DCA всегда раньше новых входов.
func (r *Runner) Cycle(ctx context.Context, st *EngineState) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "runner.cycle")
	defer span.Finish()

	started := r.now()
	st.Cycle++
	st.touched = make(map[string]bool)
	span.SetTag("cycle", st.Cycle)

	r.rollDaily(ctx, st, started)

	if r.cfg.SymbolsRefresh > 0 && started.Sub(st.SymbolsRefreshedAt) >= r.cfg.SymbolsRefresh {
		r.refreshSymbols(ctx, st)
	}

	if r.pullPositions(ctx, st) {
		r.reconcileVanished(ctx, st)
		r.tp.Resync(ctx, st)
		r.evaluateCloses(ctx, st)
		r.evaluateDCA(ctx, st)
		if started.Sub(st.OrphanCheckedAt) >= r.cfg.OrphanCheckInterval {
			r.checkOrphans(ctx, st)
		}
		r.m.SetOpenPositions(len(st.Positions))

		if r.inCooldown(st, started) {
			r.log.Debug("cooldown", zap.Duration("left", r.cfg.Cooldown-started.Sub(st.LastTradeAt)))
		} else {
			r.scanEntries(ctx, st)
		}
	}

	r.health.TouchCycle(r.now(), len(st.Levels))
	r.m.ObserveCycle(r.now().Sub(started))
}

func (r *Runner) inCooldown(st *EngineState, now time.Time) bool {
	return !st.LastTradeAt.IsZero() && now.Sub(st.LastTradeAt) < r.cfg.Cooldown
}

// refreshSymbols обновляет метаданные инструментов. Символы из списка,
// которых нет на бирже, выпадают из сканирования.
func (r *Runner) refreshSymbols(ctx context.Context, st *EngineState) {
	metas, err := retry.Call(ctx, r.retry, "symbols", retry.KindQuery, r.gw.Symbols)
	if err != nil {
		r.log.Warn("symbols refresh failed", zap.Error(err))
		return
	}
	meta := make(map[string]models.SymbolMeta, len(metas))
	for _, m := range metas {
		meta[m.Symbol] = m
	}

	symbols := make([]string, 0, len(r.cfg.Symbols))
	for _, s := range r.cfg.Symbols {
		if _, ok := meta[s]; ok {
			symbols = append(symbols, s)
			continue
		}
		r.log.Warn("symbol not tradable, skipped", zap.String("symbol", s))
	}
	st.Meta = meta
	st.Symbols = symbols
	st.SymbolsRefreshedAt = r.now()
	r.log.Info("symbols refreshed", zap.Int("tradable", len(symbols)), zap.Int("exchange", len(metas)))
}

// rollDaily шлёт сводку за прошедший день при смене даты.
func (r *Runner) rollDaily(ctx context.Context, st *EngineState, now time.Time) {
	day := now.UTC().Format(time.DateOnly)
	if st.Daily.Day == day {
		return
	}
	if st.Daily.Day != "" {
		r.notifier.Sendf(ctx, notify.CategoryDaily,
			"📊 Итоги %s\nОткрыто: %d\nЗакрыто: %d\nPnL: %.4f USDT",
			st.Daily.Day, st.Daily.Opened, st.Daily.Closed, st.Daily.PnL)
	}
	st.Daily = DailySummary{Day: day}
}

// safe изолирует панику одного символа от остального цикла.
func (r *Runner) safe(symbol, stage string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic recovered",
				zap.String("symbol", symbol),
				zap.String("stage", stage),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
		}
	}()
	fn()
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
