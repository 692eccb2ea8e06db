package service

import (
	"context"
	_ "embed"
	"fmt"

	"go.uber.org/zap"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"
)

// Recorder persists position lifecycle events.
type Recorder interface {
	Record(ctx context.Context, ev models.PositionEvent) error
}

const insertEvent = `
INSERT INTO position_events (
	position_id, underlying_token, derivative_token, symbol, kind, side,
	price, stop_loss, take_profit, strike, reason, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

//go:embed schema.sql
var schema string

// PgJournal writes events to the position_events table.
type PgJournal struct {
	db  db.TxManager
	log *zap.Logger
}

func NewPgJournal(tx db.TxManager, log *zap.Logger) *PgJournal {
	return &PgJournal{db: tx, log: log}
}

// Migrate creates the position_events table and its indexes if missing.
func (j *PgJournal) Migrate(ctx context.Context) error {
	err := j.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("PgJournal.Migrate: %w", err)
	}
	return nil
}

func (j *PgJournal) Record(ctx context.Context, ev models.PositionEvent) (err error) {
	defer func() {
		if err != nil {
			err = fmt.Errorf("PgJournal.Record: %w", err)
		}
	}()
	return j.db.RunMaster(ctx, func(ctxTx context.Context, tx db.Transaction) error {
		_, err := tx.Exec(ctxTx, insertEvent,
			ev.PositionID,
			ev.UnderlyingKey,
			ev.Derivative,
			ev.Symbol,
			ev.Kind.String(),
			string(ev.Side),
			ev.Price,
			ev.StopLoss,
			ev.TakeProfit,
			ev.Strike,
			ev.Reason,
			ev.At,
		)
		return err
	})
}

// LogJournal only logs events; used without a database.
type LogJournal struct {
	log *zap.Logger
}

func NewLogJournal(log *zap.Logger) *LogJournal {
	return &LogJournal{log: log}
}

func (j *LogJournal) Record(_ context.Context, ev models.PositionEvent) error {
	j.log.Info("position event",
		zap.String("position_id", ev.PositionID),
		zap.String("token", ev.UnderlyingKey),
		zap.String("derivative", ev.Derivative),
		zap.Stringer("kind", ev.Kind),
		zap.String("side", string(ev.Side)),
		zap.Float64("price", ev.Price),
		zap.String("reason", ev.Reason),
	)
	return nil
}
