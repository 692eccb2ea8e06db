package instruments

import (
	"go.uber.org/fx"

	"signal_bot/internal/modules/instruments/service"
)

func Module() fx.Option {
	return fx.Module("instruments",
		fx.Provide(
			service.NewLookup, // *service.Lookup
		),
	)
}
