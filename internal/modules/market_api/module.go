package market_api

import (
	"go.uber.org/fx"

	"signal_bot/internal/modules/market_api/service"
)

func Module() fx.Option {
	return fx.Module("market_api",
		fx.Provide(
			service.NewClient, // *service.Client
		),
	)
}
