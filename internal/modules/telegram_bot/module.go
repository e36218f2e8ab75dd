package telegram

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/modules/config"
	health "scalp_bot/internal/modules/health/service"
	"scalp_bot/internal/modules/telegram_bot/service"
	"scalp_bot/internal/store"
)

// Module: команды оператора в Telegram. Без токена не стартует.
func Module() fx.Option {
	return fx.Module("telegram",
		fx.Invoke(
			func(lc fx.Lifecycle, cfg *config.Config, st *store.Store, h *health.State, log *zap.Logger) error {
				if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
					return nil
				}
				t, err := service.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, st, h, log.Named("telegram"))
				if err != nil {
					return err
				}
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(_ context.Context) error {
						go t.Start(ctx)
						return nil
					},
					OnStop: func(_ context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
				return nil
			},
		),
	)
}
