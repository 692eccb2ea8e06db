package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	bootstrap "signal_bot/internal/modules/bootstrap/service"
	health "signal_bot/internal/modules/health/service"
	marketapi "signal_bot/internal/modules/market_api/service"
	telegram "signal_bot/internal/modules/telegram_bot/service"
	"signal_bot/internal/runner"
)

func Module() fx.Option {
	return fx.Module("bootstrap",
		fx.Provide(
			func(c *marketapi.Client) bootstrap.TokenSource { return c },
			func(c *marketapi.Client) bootstrap.HistorySource { return c },
			bootstrap.NewWatchlist, // -> *bootstrap.Watchlist
			bootstrap.NewWarmuper,  // -> *bootstrap.Warmuper
		),
		fx.Invoke(func(
			lc fx.Lifecycle,
			wl *bootstrap.Watchlist,
			wu *bootstrap.Warmuper,
			m *runner.Manager,
			state *health.State,
			tg *telegram.Telegram,
			log *zap.Logger,
		) {
			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						defer close(done)
						keys := wl.Resolve(ctx)
						if len(keys) == 0 {
							log.Error("empty watchlist, nothing to trade")
							return
						}
						history := wu.Warmup(ctx, keys)
						if ctx.Err() != nil {
							return
						}
						n := m.Start(ctx, keys, history)
						state.SetReady(true)
						log.Info("bootstrap done", zap.Strings("tokens", keys), zap.Int("started", n))
						tg.Sendf("signal bot started: %d underlyings", n)
					}()
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					<-done
					return nil
				},
			})
		}),
	)
}
