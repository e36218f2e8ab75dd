package models

// SymbolProfile: статические параметры символа.
type SymbolProfile struct {
	SpreadLimitPct  float64 `yaml:"spread_limit_pct"`  // 1.0 => 1%
	VolumeSpikeMult float64 `yaml:"volume_spike_mult"` // объём > среднее * mult
	BreakoutATRMult float64 `yaml:"breakout_atr_mult"` // пробой на mult*ATR
	QtyPrecision    int     `yaml:"qty_precision"`     // знаков после запятой
}

// DefaultProfile: для символов без собственного профиля.
var DefaultProfile = SymbolProfile{
	SpreadLimitPct:  1.0,
	VolumeSpikeMult: 1.0,
	BreakoutATRMult: 0.1,
	QtyPrecision:    2,
}

// Profiles: профили по символам плюс дефолт.
type Profiles struct {
	Default  SymbolProfile            `yaml:"default"`
	BySymbol map[string]SymbolProfile `yaml:"symbols"`
}

// For всегда возвращает профиль: свой или дефолтный.
func (p Profiles) For(symbol string) SymbolProfile {
	if sp, ok := p.BySymbol[symbol]; ok {
		return sp
	}
	if p.Default == (SymbolProfile{}) {
		return DefaultProfile
	}
	return p.Default
}
