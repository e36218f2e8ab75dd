package runner

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/journal"
	"scalp_bot/internal/metrics"
	"scalp_bot/internal/models"
	bnc "scalp_bot/internal/modules/binance_client/service"
	"scalp_bot/internal/modules/config"
	health "scalp_bot/internal/modules/health/service"
	"scalp_bot/internal/notify"
	"scalp_bot/internal/store"
	"scalp_bot/internal/strategy"
)

var _ Gateway = (*bnc.Client)(nil)

type params struct {
	fx.In

	Cfg      *config.Config
	Profiles models.Profiles
	Client   *bnc.Client
	Store    *store.Store
	Journal  journal.Recorder
	Notifier notify.Notifier
	Log      *zap.Logger
	Metrics  *metrics.Metrics
	Health   *health.State
}

func newRunner(p params) *Runner {
	return New(Deps{
		Settings: p.Cfg.Trading,
		Profiles: p.Profiles,
		Gateway:  p.Client,
		Store:    p.Store,
		Journal:  p.Journal,
		Notifier: p.Notifier,
		Log:      p.Log.Named("runner"),
		Metrics:  p.Metrics,
		Health:   p.Health,
		Detector: strategy.NewDetector(strategy.DefaultConfig()),
	})
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(newRunner),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner, h *health.State, log *zap.Logger) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})

			lc.Append(fx.Hook{
				OnStart: func(_ context.Context) error {
					go func() {
						defer close(done)
						if err := r.Run(ctx); err != nil {
							log.Error("runner exited", zap.Error(err))
						}
					}()
					return nil
				},
				OnStop: func(stopCtx context.Context) error {
					// на остановке сразу снимаем readiness
					h.SetReady(false)
					cancel()
					select {
					case <-done:
					case <-stopCtx.Done():
						return stopCtx.Err()
					}
					return nil
				},
			})
		}),
	)
}
