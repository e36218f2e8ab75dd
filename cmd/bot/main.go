package main

import (
	"context"
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"scalp_bot/internal/metrics"
	binance "scalp_bot/internal/modules/binance_client"
	"scalp_bot/internal/modules/config"
	"scalp_bot/internal/modules/health"
	"scalp_bot/internal/modules/postgres"
	"scalp_bot/internal/modules/storage"
	telegram "scalp_bot/internal/modules/telegram_bot"
	"scalp_bot/internal/modules/tracing"
	"scalp_bot/internal/notify"
	"scalp_bot/internal/runner"
	"scalp_bot/pkg/logger"
)

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			func(cfg *config.Config) (*zap.Logger, error) {
				logger.SetServiceName(cfg.Service.Name)
				return logger.New(logger.Config{Level: cfg.Log.Level, File: cfg.Log.File})
			},
		),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		config.Module(),
		tracing.Module(),
		metrics.Module(),
		postgres.Module(),
		storage.Module(),
		binance.Module(),
		notify.Module(),
		health.Module(),
		runner.Module(),
		telegram.Module(),
	)
	if err := app.Err(); err != nil {
		log.Fatal(err)
	}
	app.Run()
}
