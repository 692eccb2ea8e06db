package main

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"signal_bot/internal/export"
	"signal_bot/internal/modules/bootstrap"
	"signal_bot/internal/modules/config"
	"signal_bot/internal/modules/health"
	"signal_bot/internal/modules/instruments"
	"signal_bot/internal/modules/journal"
	marketapi "signal_bot/internal/modules/market_api"
	"signal_bot/internal/modules/postgres"
	"signal_bot/internal/modules/strategy"
	telegram "signal_bot/internal/modules/telegram_bot"
	tickstream "signal_bot/internal/modules/tick_stream"
	tickservice "signal_bot/internal/modules/tick_stream/service"
	"signal_bot/internal/runner"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)
	return logger.New(cfg.Log.Level)
}

func runTracer(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) error {
	if cfg.Tracing.Host == "" {
		return nil
	}
	_, closeTracer, err := tracing.InitTracer(tracing.Config{Host: cfg.Tracing.Host, Port: cfg.Tracing.Port}, log)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			closeTracer()
			return nil
		},
	})
	return nil
}

func main() {
	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
			newLogger,
			export.NewCSV,
			func(s *tickservice.Supervisor) health.StreamCounter { return s },
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
		fx.Invoke(runTracer),
		config.Module(),
		postgres.Module(),
		journal.Module(),
		marketapi.Module(),
		instruments.Module(),
		strategy.Module(),
		tickstream.Module(),
		health.Module(),
		telegram.Module(),
		runner.Module(),
		bootstrap.Module(),
	)
	app.Run()
}
