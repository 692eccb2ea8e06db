package runner

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/export"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	health "signal_bot/internal/modules/health/service"
	instruments "signal_bot/internal/modules/instruments/service"
	journal "signal_bot/internal/modules/journal/service"
	marketapi "signal_bot/internal/modules/market_api/service"
	strategy "signal_bot/internal/modules/strategy/service"
	telegram "signal_bot/internal/modules/telegram_bot/service"
	tickstream "signal_bot/internal/modules/tick_stream/service"
	"signal_bot/internal/runner/sessions"
)

type BuilderParams struct {
	fx.In

	Cfg      *config.Config
	Factory  *strategy.Factory
	Market   *marketapi.Client
	Lookup   *instruments.Lookup
	Streams  *tickstream.Supervisor
	Journal  journal.Recorder
	Notifier *telegram.Telegram
	Exporter *export.CSV
	State    *health.State
	Log      *zap.Logger
}

// NewBuilder wires the per-underlying bundle: series, engine, position machine
// and orchestrator.
func NewBuilder(p BuilderParams) Builder {
	ocfg := OrchestratorConfigFrom(p.Cfg)
	log := p.Log.Named("runner")

	return func(key string, history []models.Bar) *Orchestrator {
		engine := p.Factory.NewEngine(key)
		machine := sessions.NewPositionMachine(sessions.MachineDeps{
			Engine:   engine,
			Lookup:   p.Lookup,
			Submit:   p.Market,
			Kill:     p.Market,
			Journal:  p.Journal,
			Notifier: p.Notifier,
			Streams:  p.Streams,
			Log:      log.Named("position"),
		}, sessions.MachineConfig{
			Key:          key,
			StrategyCode: p.Cfg.Strategy.Code,
			Location:     p.Cfg.Location,
			EntryCutoff:  p.Cfg.Trading.EntryCutoff,
			ExitCutoff:   p.Cfg.Trading.ExitCutoff,
		})

		deps := OrchestratorDeps{
			Market:    p.Market,
			Series:    p.Factory.NewSeries(),
			Machine:   machine,
			Heartbeat: p.State,
			Log:       log,
			History:   history,
		}
		if p.Exporter != nil {
			deps.Exporter = p.Exporter
		}
		return NewOrchestrator(key, deps, ocfg)
	}
}

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			NewBuilder, // Builder
			func(b Builder, log *zap.Logger) *Manager {
				return NewManager(b, log.Named("manager"))
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, m *Manager) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					m.Stop()
					return nil
				},
			})
		}),
	)
}
