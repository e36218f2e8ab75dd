package binance_client

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	"scalp_bot/internal/modules/binance_client/service"
	"scalp_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("binance",
		fx.Provide(
			func(cfg *config.Config, log *zap.Logger) *service.Client {
				if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
					log.Warn("binance api key/secret are empty, signed endpoints will fail")
				}
				return service.NewClient(service.Config{
					BaseURL:    cfg.Exchange.BaseURL,
					APIKey:     cfg.Exchange.APIKey,
					APISecret:  cfg.Exchange.APISecret,
					RecvWindow: cfg.Exchange.RecvWindow,
					Timeout:    cfg.Exchange.Timeout,
				}, log.Named("binance"))
			},
		),
	)
}
