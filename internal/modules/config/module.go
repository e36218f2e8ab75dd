package config

import (
	"go.uber.org/fx"

	profiles "scalp_bot/internal/config"
	"scalp_bot/internal/models"
)

// ProvideAppConfig регистрируем как fx-провайдер.
func Module() fx.Option {
	return fx.Module("config",
		fx.Provide(
			NewConfig,
			func(cfg *Config) (models.Profiles, error) {
				return profiles.LoadProfiles(cfg.ProfilesFile)
			},
		),
	)
}
