package postgres

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/modules/config"
	"scalp_bot/pkg/db"
)

// Module даёт *db.Pool или nil, если DATABASE_DSN не задан:
// журнал в Postgres необязателен.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (*db.Pool, error) {
				if cfg.DB == "" {
					log.Info("postgres journal disabled")
					return nil, nil
				}
				pool, err := db.Open(ctx, db.Config{DSN: cfg.DB, MaxConns: 2}, log.Named("postgres"))
				if err != nil {
					return nil, err
				}
				lc.Append(fx.StopHook(pool.Close))
				return pool, nil
			},
		),
	)
}
