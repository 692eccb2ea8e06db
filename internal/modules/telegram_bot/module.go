package telegram

import (
	"context"

	"go.uber.org/fx"

	"signal_bot/internal/modules/telegram_bot/service"
	tickstream "signal_bot/internal/modules/tick_stream/service"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			service.NewTelegram, // func(*config.Config, *health.State, *zap.Logger) (*service.Telegram, error)
		),
		fx.Invoke(
			func(lc fx.Lifecycle, t *service.Telegram, streams *tickstream.Supervisor) {
				t.SetStreams(streams)
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						t.Start(ctx)
						return nil
					},
					OnStop: func(context.Context) error {
						cancel()
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
