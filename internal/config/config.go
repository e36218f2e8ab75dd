package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"

	"scalp_bot/internal/models"
)

// BuiltinProfiles: значения, с которыми бот торговал изначально.
// Точность количества перекрывается шагом лота с биржи, если он известен.
func BuiltinProfiles() models.Profiles {
	alt := func(spread float64, prec int) models.SymbolProfile {
		return models.SymbolProfile{SpreadLimitPct: spread, VolumeSpikeMult: 0.8, BreakoutATRMult: 0.05, QtyPrecision: prec}
	}
	major := func(prec int) models.SymbolProfile {
		return models.SymbolProfile{SpreadLimitPct: 1.0, VolumeSpikeMult: 1.0, BreakoutATRMult: 0.1, QtyPrecision: prec}
	}

	return models.Profiles{
		Default: models.DefaultProfile,
		BySymbol: map[string]models.SymbolProfile{
			"ADAUSDT": alt(1.5, 0),
			"LTCUSDT": alt(1.5, 3),
			"SOLUSDT": alt(1.5, 0),
			"XRPUSDT": alt(2.0, 0),
			"BNBUSDT": major(2),
			"ETHUSDT": major(3),
			"BTCUSDT": major(3),
		},
	}
}

// LoadProfiles читает yaml поверх встроенных профилей. Пустой path: только встроенные.
func LoadProfiles(path string) (models.Profiles, error) {
	out := BuiltinProfiles()
	if path == "" {
		return out, nil
	}

	file, err := os.Open(path)
	if err != nil {
		return models.Profiles{}, fmt.Errorf("open profiles %s: %w", path, err)
	}
	defer func() {
		_ = file.Close()
	}()

	var fromFile models.Profiles
	if err := yaml.NewDecoder(file).Decode(&fromFile); err != nil {
		return models.Profiles{}, fmt.Errorf("decode profiles %s: %w", path, err)
	}

	if fromFile.Default != (models.SymbolProfile{}) {
		out.Default = fromFile.Default
	}
	for sym, p := range fromFile.BySymbol {
		out.BySymbol[sym] = p
	}
	return out, nil
}
