package models

import "time"

// TradingSettings: параметры движка.
type TradingSettings struct {
	// Символы в порядке приоритета
	Symbols     []string `mapstructure:"symbols"`
	Interval    string   `mapstructure:"interval"`
	CandleLimit int      `mapstructure:"candle_limit"`

	CycleInterval time.Duration `mapstructure:"cycle_interval"`
	Cooldown      time.Duration `mapstructure:"cooldown"`

	Leverage       int     `mapstructure:"leverage"`
	MarginPerTrade float64 `mapstructure:"margin_per_trade"`

	ATRTPMult          float64 `mapstructure:"atr_tp_mult"`
	MaxTPPct           float64 `mapstructure:"max_tp_pct"`
	FeeRate            float64 `mapstructure:"fee_rate"`
	MinPotentialProfit float64 `mapstructure:"min_potential_profit"` // 0: выключено

	VolatilityWindow    int     `mapstructure:"volatility_window"`
	VolatilityThreshold float64 `mapstructure:"volatility_threshold"`
	OrderBookDepth      int     `mapstructure:"order_book_depth"`

	DustThreshold       float64       `mapstructure:"dust_threshold"`
	SymbolsRefresh      time.Duration `mapstructure:"symbols_refresh"`
	OrphanCheckInterval time.Duration `mapstructure:"orphan_check_interval"`
	CloseSplitParts     int           `mapstructure:"close_split_parts"`
	CloseVerifyDelay    time.Duration `mapstructure:"close_verify_delay"`

	DCA   DCASettings   `mapstructure:"dca"`
	Retry RetrySettings `mapstructure:"retry"`
}

type DCASettings struct {
	Enabled        bool          `mapstructure:"enabled"`
	MaxEntries     int           `mapstructure:"max_entries"`
	MinInterval    time.Duration `mapstructure:"min_interval"`
	BaseMaxLossPct float64       `mapstructure:"base_max_loss_pct"` // 0.05 => 5%
	StepPct        float64       `mapstructure:"step_pct"`          // +5 п.п. за каждое усреднение
	SizeMultiplier float64       `mapstructure:"size_multiplier"`
}

type RetrySettings struct {
	Attempts int           `mapstructure:"attempts"`
	Delay    time.Duration `mapstructure:"delay"`
}
