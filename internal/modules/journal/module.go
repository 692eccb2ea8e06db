package journal

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_bot/internal/modules/journal/service"
	"signal_bot/pkg/db"
)

// NewRecorder picks the postgres journal when a pool is configured and
// applies its schema on start.
func NewRecorder(lc fx.Lifecycle, tx *db.PgTxManager, log *zap.Logger) service.Recorder {
	log = log.Named("journal")
	if tx == nil {
		return service.NewLogJournal(log)
	}
	j := service.NewPgJournal(tx, log)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return j.Migrate(ctx)
		},
	})
	return j
}

func Module() fx.Option {
	return fx.Module("journal",
		fx.Provide(NewRecorder),
	)
}
