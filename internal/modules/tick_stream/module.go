package tick_stream

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/modules/config"
	instruments "signal_bot/internal/modules/instruments/service"
	"signal_bot/internal/modules/tick_stream/service"
)

func newSupervisor(cfg *config.Config, lookup *instruments.Lookup, log *zap.Logger) *service.Supervisor {
	log = log.Named("tick_stream")
	sink := service.NewHTTPSink(cfg.API.BaseURL, nil)
	feeds := func(key string) service.Feed {
		if cfg.Stream.FeedURL == "" {
			return service.NopFeed{}
		}
		return service.NewWSFeed(cfg.Stream.FeedURL, key, log)
	}
	if cfg.Stream.FeedURL == "" {
		log.Warn("stream.feed_url is empty, derivative streams will be idle")
	}
	return service.NewSupervisor(service.PipelineConfigFrom(cfg), sink, feeds, lookup, log)
}

// Module provides the derivative stream supervisor; streams are started by
// the position machines and all stopped on shutdown.
func Module() fx.Option {
	return fx.Module("tick_stream",
		fx.Provide(
			newSupervisor, // *service.Supervisor
		),
		fx.Invoke(func(lc fx.Lifecycle, s *service.Supervisor) {
			lc.Append(fx.Hook{
				OnStop: func(ctx context.Context) error {
					s.StopAll()
					return nil
				},
			})
		}),
	)
}
