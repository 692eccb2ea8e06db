package service

import (
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
)

// maxRows bounds a long-running series; the engine only reads the tail.
const maxRows = 5000

// Factory builds the per-underlying series and engine from the loaded config.
type Factory struct {
	cfg *config.Config
	log *zap.Logger
}

func NewFactory(cfg *config.Config, log *zap.Logger) *Factory {
	return &Factory{cfg: cfg, log: log}
}

func (f *Factory) NewSeries() *Series {
	return NewSeries(SeriesConfigFrom(f.cfg))
}

func (f *Factory) NewEngine(token string) *Engine {
	return NewEngine(EngineConfigFrom(f.cfg, token), f.log.Named("engine"))
}

func SeriesConfigFrom(cfg *config.Config) SeriesConfig {
	s := cfg.Strategy
	return SeriesConfig{
		ATRLength:      s.ATRLength,
		RSILength:      s.RSILength,
		EntryFilterRes: s.EntryFilterRes,
		TrendFilterRes: s.TrendFilterRes,
		Location:       cfg.Location,
		SessionStart:   s.SessionStart,
		SessionEnd:     s.SessionEnd,
		MaxRows:        maxRows,
	}
}

func EngineConfigFrom(cfg *config.Config, token string) EngineConfig {
	s := cfg.Strategy
	return EngineConfig{
		Token:               token,
		ATRMultiplier:       s.ATRMultiplier,
		RiskReward:          s.RiskReward,
		RSINeutral:          s.RSINeutral,
		LongEntryFilterMax:  s.LongEntryFilterMax,
		ShortEntryFilterMin: s.ShortEntryFilterMin,
		RoundOffOffset:      s.RoundOffOffset,
		StrikeStep:          s.StrikeStep,
		PricePrecision:      s.PricePrecision,
	}
}
