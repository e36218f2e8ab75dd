package notify

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("notify",
		fx.Provide(
			func(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) Notifier {
				if cfg.Telegram.Token == "" || cfg.Telegram.ChatID == 0 {
					log.Warn("telegram is not configured, notifications go to log")
					return NewLog(log)
				}
				tg, err := NewTelegram(cfg.Telegram.Token, cfg.Telegram.ChatID, log, cfg.Telegram.Muted)
				if err != nil {
					log.Error("telegram init failed, notifications go to log", zap.Error(err))
					return NewLog(log)
				}
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						tg.Start()
						return nil
					},
					OnStop: tg.Stop,
				})
				return tg
			},
		),
	)
}
