package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"scalp_bot/internal/models"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	apiKeyENV         = "BINANCE_API_KEY"
	apiSecretENV      = "BINANCE_API_SECRET"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string   `mapstructure:"token"`
		ChatID int64    `mapstructure:"chat_id"`
		Muted  []string `mapstructure:"muted"` // категории, которые не шлём
	} `mapstructure:"telegram"`
	DB      string `mapstructure:"db_dsn"`
	Service struct {
		Name       string `mapstructure:"name"`
		HealthAddr string `mapstructure:"health_addr"`
	} `mapstructure:"service"`

	Exchange struct {
		BaseURL    string        `mapstructure:"base_url"`
		APIKey     string        `mapstructure:"api_key"`
		APISecret  string        `mapstructure:"api_secret"`
		RecvWindow int64         `mapstructure:"recv_window"`
		Timeout    time.Duration `mapstructure:"timeout"`
	} `mapstructure:"exchange"`

	Storage struct {
		Path      string `mapstructure:"path"`
		TradesCSV string `mapstructure:"trades_csv"`
		DCACSV    string `mapstructure:"dca_csv"`
	} `mapstructure:"storage"`

	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`

	Tracing struct {
		Enabled bool   `mapstructure:"enabled"`
		Host    string `mapstructure:"host"`
		Port    int    `mapstructure:"port"`
		// 0 или 1: сэмплировать все циклы
		SampleRate float64 `mapstructure:"sample_rate"`
	} `mapstructure:"tracing"`

	// Файл с профилями символов (yaml), пусто: встроенные значения
	ProfilesFile string `mapstructure:"profiles_file"`

	Trading models.TradingSettings `mapstructure:"trading"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "scalp_bot")
	v.SetDefault("service.health_addr", ":8080")

	v.SetDefault("exchange.base_url", "https://fapi.binance.com")
	v.SetDefault("exchange.api_key", "")
	v.SetDefault("exchange.api_secret", "")
	v.SetDefault("exchange.recv_window", 5000)
	v.SetDefault("exchange.timeout", "10s")

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("telegram.muted", []string{})
	v.SetDefault("db_dsn", "")

	v.SetDefault("storage.path", "data/state")
	v.SetDefault("storage.trades_csv", "data/historial_trades.csv")
	v.SetDefault("storage.dca_csv", "data/historial_dca.csv")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.host", "localhost")
	v.SetDefault("tracing.port", 6831)
	v.SetDefault("tracing.sample_rate", 1.0)

	v.SetDefault("profiles_file", "")

	v.SetDefault("trading.symbols", []string{"ETHUSDT", "BNBUSDT", "BTCUSDT", "SOLUSDT", "XRPUSDT"})
	v.SetDefault("trading.interval", "1m")
	v.SetDefault("trading.candle_limit", 100)
	v.SetDefault("trading.cycle_interval", "5s")
	v.SetDefault("trading.cooldown", "15m")
	v.SetDefault("trading.leverage", 10)
	v.SetDefault("trading.margin_per_trade", 100.0)
	v.SetDefault("trading.atr_tp_mult", 1.2)
	v.SetDefault("trading.max_tp_pct", 0.02)
	v.SetDefault("trading.fee_rate", 0.001)
	v.SetDefault("trading.min_potential_profit", 0.0)
	v.SetDefault("trading.volatility_window", 10)
	v.SetDefault("trading.volatility_threshold", 0.015)
	v.SetDefault("trading.order_book_depth", 5)
	v.SetDefault("trading.dust_threshold", 0.0001)
	v.SetDefault("trading.symbols_refresh", "1h")
	v.SetDefault("trading.orphan_check_interval", "5m")
	v.SetDefault("trading.close_split_parts", 3)
	v.SetDefault("trading.close_verify_delay", "2s")

	v.SetDefault("trading.dca.enabled", true)
	v.SetDefault("trading.dca.max_entries", 3)
	v.SetDefault("trading.dca.min_interval", "30m")
	v.SetDefault("trading.dca.base_max_loss_pct", 0.05)
	v.SetDefault("trading.dca.step_pct", 0.05)
	v.SetDefault("trading.dca.size_multiplier", 1.0)

	v.SetDefault("trading.retry.attempts", 3)
	v.SetDefault("trading.retry.delay", "2s")
}

// NewConfig: .env -> configs/<CONFIG_FILE> -> SCALP_* из окружения -> секреты.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	dir := os.Getenv(configDirENV)
	if dir == "" {
		dir = "configs"
	}
	return Load(dir + "/" + configFileName)
}

// Load читает конкретный файл. Отсутствующий файл не ошибка: работают дефолты.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	v.SetEnvPrefix("SCALP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(path); statErr == nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if token := os.Getenv(tokenTelegramENV); token != "" {
		cfg.Telegram.Token = token
	}
	if chat := os.Getenv(chatTelegramENV); chat != "" {
		if id, err := strconv.ParseInt(chat, 10, 64); err == nil {
			cfg.Telegram.ChatID = id
		}
	}
	if dsn := os.Getenv(databaseDSN); dsn != "" {
		cfg.DB = dsn
	}
	if key := os.Getenv(apiKeyENV); key != "" {
		cfg.Exchange.APIKey = key
	}
	if secret := os.Getenv(apiSecretENV); secret != "" {
		cfg.Exchange.APISecret = secret
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	t := c.Trading
	switch {
	case len(t.Symbols) == 0:
		return fmt.Errorf("trading.symbols is empty")
	case t.Leverage <= 0:
		return fmt.Errorf("trading.leverage must be > 0")
	case t.MarginPerTrade <= 0:
		return fmt.Errorf("trading.margin_per_trade must be > 0")
	case t.MaxTPPct <= 0:
		return fmt.Errorf("trading.max_tp_pct must be > 0")
	case t.CycleInterval <= 0:
		return fmt.Errorf("trading.cycle_interval must be > 0")
	case t.DCA.Enabled && t.DCA.SizeMultiplier <= 0:
		return fmt.Errorf("trading.dca.size_multiplier must be > 0")
	}
	return nil
}
