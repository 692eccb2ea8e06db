package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata" // trading.timezone must load without system zoneinfo

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"signal_bot/internal/helper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	tokenTelegramENV  = "TELEGRAM_TOKEN"
	chatTelegramENV   = "TELEGRAM_CHAT_ID"
	databaseDSN       = "DATABASE_DSN"
	apiBaseURLENV     = "API_BASE_URL"
	feedURLENV        = "FEED_WS_URL"
)

// Config ...
type Config struct {
	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`
	DB      string `mapstructure:"db_dsn"`
	Service struct {
		Name      string `mapstructure:"name"`
		AdminAddr string `mapstructure:"admin_addr"`
	} `mapstructure:"service"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	Tracing struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"tracing"`

	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`

	Watchlist struct {
		Tokens  []string `mapstructure:"tokens"`
		FromAPI bool     `mapstructure:"from_api"`
	} `mapstructure:"watchlist"`

	Instruments struct {
		File string `mapstructure:"file"`
	} `mapstructure:"instruments"`

	Export struct {
		CSVDir string `mapstructure:"csv_dir"`
	} `mapstructure:"export"`

	Strategy Strategy `mapstructure:"strategy"`
	Trading  Trading  `mapstructure:"trading"`
	Stream   Stream   `mapstructure:"stream"`

	// parsed from the *Raw fields
	Location *time.Location `mapstructure:"-"`
}

// Strategy holds indicator and signal parameters.
type Strategy struct {
	Code                string        `mapstructure:"code"`
	ATRLength           int           `mapstructure:"atr_length"`
	ATRMultiplier       float64       `mapstructure:"atr_multiplier"`
	RSILength           int           `mapstructure:"rsi_length"`
	RiskReward          float64       `mapstructure:"risk_reward"`
	EntryFilterRes      time.Duration `mapstructure:"entry_filter_resolution"`
	TrendFilterRes      time.Duration `mapstructure:"trend_filter_resolution"`
	RSINeutral          float64       `mapstructure:"rsi_neutral"`
	LongEntryFilterMax  float64       `mapstructure:"long_entry_filter_max"`
	ShortEntryFilterMin float64       `mapstructure:"short_entry_filter_min"`
	RoundOffOffset      float64       `mapstructure:"round_off_offset"`
	StrikeStep          float64       `mapstructure:"strike_step"`
	PricePrecision      int32         `mapstructure:"price_precision"`
	SessionStartRaw     string        `mapstructure:"session_start"`
	SessionEndRaw       string        `mapstructure:"session_end"`

	SessionStart helper.Clock `mapstructure:"-"`
	SessionEnd   helper.Clock `mapstructure:"-"`
}

// Trading holds the orchestrator loop and position lifecycle settings.
type Trading struct {
	TimezoneRaw    string        `mapstructure:"timezone"`
	MarketOpenRaw  string        `mapstructure:"market_open"`
	MarketCloseRaw string        `mapstructure:"market_close"`
	EntryCutoffRaw string        `mapstructure:"entry_cutoff"`
	ExitCutoffRaw  string        `mapstructure:"exit_cutoff"`
	AlwaysOpen     bool          `mapstructure:"always_open"`
	HistoryBars    int           `mapstructure:"history_bars"`
	ClosedPoll     time.Duration `mapstructure:"closed_poll"`
	Throttle       time.Duration `mapstructure:"throttle"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MinBackoff     time.Duration `mapstructure:"min_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`

	MarketOpen  helper.Clock `mapstructure:"-"`
	MarketClose helper.Clock `mapstructure:"-"`
	EntryCutoff helper.Clock `mapstructure:"-"`
	ExitCutoff  helper.Clock `mapstructure:"-"`
}

// Stream holds the option tick pipeline settings.
type Stream struct {
	FeedURL      string        `mapstructure:"feed_url"`
	Workers      int           `mapstructure:"workers"`
	QueueSize    int           `mapstructure:"queue_size"`
	MinInterval  time.Duration `mapstructure:"min_interval"`
	SinkTimeout  time.Duration `mapstructure:"sink_timeout"`
	MetricsEvery time.Duration `mapstructure:"metrics_every"`
}

func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = "values_local.yaml"
	}
	path := configFileName
	if !filepath.IsAbs(path) && filepath.Dir(path) == "." {
		path = filepath.Join("configs", configFileName)
	}
	return Load(path)
}

// Load reads path (missing file means defaults only), applies env overrides and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("telegram.token", tokenTelegramENV)
	_ = v.BindEnv("telegram.chat_id", chatTelegramENV)
	_ = v.BindEnv("db_dsn", databaseDSN)
	_ = v.BindEnv("api.base_url", apiBaseURLENV)
	_ = v.BindEnv("stream.feed_url", feedURLENV)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.parse(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service.name", "signal_bot")
	v.SetDefault("service.admin_addr", ":8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("tracing.port", 6831)

	v.SetDefault("api.base_url", "http://localhost:8000/db")
	v.SetDefault("api.timeout", "5s")
	v.SetDefault("watchlist.from_api", true)
	v.SetDefault("instruments.file", "configs/strikes.yaml")

	v.SetDefault("strategy.code", "HA_ATR_STRIKE")
	v.SetDefault("strategy.atr_length", 14)
	v.SetDefault("strategy.atr_multiplier", 2.5)
	v.SetDefault("strategy.rsi_length", 14)
	v.SetDefault("strategy.risk_reward", 2.0)
	v.SetDefault("strategy.entry_filter_resolution", "3m")
	v.SetDefault("strategy.trend_filter_resolution", "15m")
	v.SetDefault("strategy.rsi_neutral", 50.0)
	v.SetDefault("strategy.long_entry_filter_max", 58.0)
	v.SetDefault("strategy.short_entry_filter_min", 34.0)
	v.SetDefault("strategy.round_off_offset", 100.0)
	v.SetDefault("strategy.strike_step", 100.0)
	v.SetDefault("strategy.price_precision", 2)
	v.SetDefault("strategy.session_start", "09:15")
	v.SetDefault("strategy.session_end", "15:15")

	v.SetDefault("trading.timezone", "Asia/Kolkata")
	v.SetDefault("trading.market_open", "09:30")
	v.SetDefault("trading.market_close", "14:00")
	v.SetDefault("trading.entry_cutoff", "11:30")
	v.SetDefault("trading.exit_cutoff", "14:25")
	v.SetDefault("trading.history_bars", 500)
	v.SetDefault("trading.closed_poll", "60s")
	v.SetDefault("trading.throttle", "2s")
	v.SetDefault("trading.request_timeout", "5s")
	v.SetDefault("trading.min_backoff", "1s")
	v.SetDefault("trading.max_backoff", "30s")

	v.SetDefault("stream.workers", 20)
	v.SetDefault("stream.queue_size", 10000)
	v.SetDefault("stream.min_interval", "1500ms")
	v.SetDefault("stream.sink_timeout", "5s")
	v.SetDefault("stream.metrics_every", "5s")
}

func (c *Config) parse() error {
	loc, err := time.LoadLocation(c.Trading.TimezoneRaw)
	if err != nil {
		return fmt.Errorf("trading.timezone %q: %w", c.Trading.TimezoneRaw, err)
	}
	c.Location = loc

	clocks := []struct {
		name string
		raw  string
		dst  *helper.Clock
	}{
		{"strategy.session_start", c.Strategy.SessionStartRaw, &c.Strategy.SessionStart},
		{"strategy.session_end", c.Strategy.SessionEndRaw, &c.Strategy.SessionEnd},
		{"trading.market_open", c.Trading.MarketOpenRaw, &c.Trading.MarketOpen},
		{"trading.market_close", c.Trading.MarketCloseRaw, &c.Trading.MarketClose},
		{"trading.entry_cutoff", c.Trading.EntryCutoffRaw, &c.Trading.EntryCutoff},
		{"trading.exit_cutoff", c.Trading.ExitCutoffRaw, &c.Trading.ExitCutoff},
	}
	for _, ck := range clocks {
		v, err := helper.ParseClock(ck.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", ck.name, err)
		}
		*ck.dst = v
	}
	return nil
}

// Validate rejects settings the engine or pipeline cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.API.BaseURL == "":
		return fmt.Errorf("api.base_url is required")
	case c.Strategy.ATRLength < 1 || c.Strategy.RSILength < 1:
		return fmt.Errorf("strategy: atr_length and rsi_length must be >= 1")
	case c.Strategy.ATRMultiplier <= 0 || c.Strategy.RiskReward <= 0:
		return fmt.Errorf("strategy: atr_multiplier and risk_reward must be > 0")
	case c.Strategy.StrikeStep <= 0:
		return fmt.Errorf("strategy.strike_step must be > 0")
	case c.Strategy.SessionStart > c.Strategy.SessionEnd:
		return fmt.Errorf("strategy: session_start after session_end")
	case c.Trading.MarketOpen > c.Trading.MarketClose:
		return fmt.Errorf("trading: market_open after market_close")
	case c.Trading.HistoryBars < 2:
		return fmt.Errorf("trading.history_bars must be >= 2")
	case c.Trading.MinBackoff <= 0 || c.Trading.MaxBackoff < c.Trading.MinBackoff:
		return fmt.Errorf("trading: need 0 < min_backoff <= max_backoff")
	case c.Stream.Workers < 1 || c.Stream.QueueSize < 1:
		return fmt.Errorf("stream: workers and queue_size must be >= 1")
	case c.Stream.MinInterval < 0:
		return fmt.Errorf("stream.min_interval must be >= 0")
	}
	return nil
}
