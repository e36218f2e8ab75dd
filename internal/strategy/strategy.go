package strategy

import "scalp_bot/internal/models"

// Engine: то, что Runner дергает на каждом символе.
type Engine interface {
	Evaluate(symbol string, candles []models.Candle, mid float64, p models.SymbolProfile) models.Signal
}

// Config: параметры детектора микроструктуры.
type Config struct {
	MinBars          int     // меньше свечей: сигнала нет
	VolumeWindow     int     // окно среднего объёма
	ATRPeriod        int     // окно ATR
	ATRMeanWindow    int     // окно среднего ATR для фильтра сжатия
	EMAPeriod        int     // трендовый фильтр
	BreakoutLookback int     // сколько предыдущих свечей смотрим на экстремум
	ContractionRatio float64 // ATR < ratio*mean(ATR) => рынок спит
}

func DefaultConfig() Config {
	return Config{
		MinBars:          30,
		VolumeWindow:     20,
		ATRPeriod:        14,
		ATRMeanWindow:    20,
		EMAPeriod:        30,
		BreakoutLookback: 5,
		ContractionRatio: 0.7,
	}
}
