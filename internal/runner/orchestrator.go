package runner

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	"signal_bot/internal/modules/config"
	strategy "signal_bot/internal/modules/strategy/service"
	"signal_bot/internal/runner/sessions"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signal_bot",
			Subsystem: "runner",
			Name:      "cycles_total",
			Help:      "Orchestrator cycles by result",
		},
		[]string{"token", "result"},
	)
	transitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "signal_bot",
			Subsystem: "runner",
			Name:      "transitions_total",
			Help:      "Position transitions by reason",
		},
		[]string{"token", "to", "reason"},
	)
)

func init() {
	prometheus.MustRegister(cyclesTotal, transitionsTotal)
}

// MarketData is the read side of the market API.
type MarketData interface {
	FetchHistory(ctx context.Context, key string, count int) ([]models.Bar, error)
	FetchLatestBar(ctx context.Context, key string) (*models.Bar, error)
	FetchLTP(ctx context.Context, key string) (time.Time, float64, error)
}

// Exporter writes the indicator table after the initial load.
type Exporter interface {
	Export(key string, rows []models.IndicatorSnapshot) error
}

// Heartbeat is told about every finished cycle.
type Heartbeat interface {
	TouchCycle(key string, at time.Time)
}

type Machine interface {
	Cycle(ctx context.Context, in sessions.CycleInput) sessions.Transition
	State() sessions.State
}

type OrchestratorConfig struct {
	Location       *time.Location
	MarketOpen     helper.Clock
	MarketClose    helper.Clock
	AlwaysOpen     bool
	HistoryBars    int
	ClosedPoll     time.Duration
	Throttle       time.Duration
	RequestTimeout time.Duration
	MinBackoff     time.Duration
	MaxBackoff     time.Duration
}

func OrchestratorConfigFrom(cfg *config.Config) OrchestratorConfig {
	t := cfg.Trading
	return OrchestratorConfig{
		Location:       cfg.Location,
		MarketOpen:     t.MarketOpen,
		MarketClose:    t.MarketClose,
		AlwaysOpen:     t.AlwaysOpen,
		HistoryBars:    t.HistoryBars,
		ClosedPoll:     t.ClosedPoll,
		Throttle:       t.Throttle,
		RequestTimeout: t.RequestTimeout,
		MinBackoff:     t.MinBackoff,
		MaxBackoff:     t.MaxBackoff,
	}
}

type OrchestratorDeps struct {
	Market    MarketData
	Series    *strategy.Series
	Machine   Machine
	Exporter  Exporter
	Heartbeat Heartbeat
	Log       *zap.Logger
	// History, when set, replaces the startup history fetch.
	History []models.Bar
}

// Orchestrator drives one underlying: it owns the series, the engine (through
// the machine) and the position, all touched only from Run's goroutine.
type Orchestrator struct {
	key  string
	cfg  OrchestratorConfig
	deps OrchestratorDeps
	log  *zap.Logger

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) bool
}

func NewOrchestrator(key string, deps OrchestratorDeps, cfg OrchestratorConfig) *Orchestrator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		key:   key,
		cfg:   cfg,
		deps:  deps,
		log:   log.With(zap.String("token", key)),
		now:   time.Now,
		sleep: func(ctx context.Context, d time.Duration) bool { return helper.Sleep(ctx.Done(), d) },
	}
}

func (o *Orchestrator) Key() string { return o.key }

// Run loads history and cycles until ctx is done.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.log.Info("orchestrator started")
	defer o.log.Info("orchestrator stopped")

	if err := o.warmup(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}

	retry := &helper.Retry{Backoff: helper.Backoff{Min: o.cfg.MinBackoff, Max: o.cfg.MaxBackoff, Factor: 2}}
	for ctx.Err() == nil {
		wait := o.safeCycle(ctx, retry)
		if !o.sleep(ctx, wait) {
			break
		}
	}
	return nil
}

func (o *Orchestrator) warmup(ctx context.Context) error {
	retry := helper.Retry{Backoff: helper.Backoff{Min: o.cfg.MinBackoff, Max: o.cfg.MaxBackoff, Factor: 2}}
	bars := o.deps.History
	for len(bars) == 0 {
		rctx, cancel := context.WithTimeout(ctx, o.requestTimeout())
		got, err := o.deps.Market.FetchHistory(rctx, o.key, o.cfg.HistoryBars)
		cancel()
		if err == nil && len(got) > 0 {
			bars = got
			break
		}
		wait := retry.Fail()
		o.log.Warn("no history yet, retrying", zap.Error(err), zap.Duration("wait", wait))
		if !o.sleep(ctx, wait) {
			return ctx.Err()
		}
	}
	o.deps.History = nil

	err := o.deps.Series.LoadInitial(bars)
	var short *strategy.InsufficientDataError
	switch {
	case errors.As(err, &short):
		o.log.Warn("history shorter than indicator window, warming up live",
			zap.Int("have", short.Have), zap.Int("need", short.Need))
	case err != nil:
		return err
	}
	o.log.Info("history loaded", zap.Int("bars", o.deps.Series.Len()), zap.Time("last", o.deps.Series.LastTime()))

	if o.deps.Exporter != nil {
		if err := o.deps.Exporter.Export(o.key, o.deps.Series.Snapshots()); err != nil {
			o.log.Warn("indicator export failed", zap.Error(err))
		}
	}
	return nil
}

func (o *Orchestrator) requestTimeout() time.Duration {
	if o.cfg.RequestTimeout <= 0 {
		return 5 * time.Second
	}
	return o.cfg.RequestTimeout
}

func (o *Orchestrator) safeCycle(ctx context.Context, retry *helper.Retry) (wait time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			cyclesTotal.WithLabelValues(o.key, "panic").Inc()
			o.log.Error("cycle panic recovered", zap.Any("panic", r), zap.Stack("stack"))
			wait = o.cfg.Throttle
		}
	}()
	return o.cycle(ctx, retry)
}

// marketOpen is the trading window check; an open position keeps the loop
// running outside it so forced exits still fire.
func (o *Orchestrator) marketOpen(now time.Time) bool {
	if o.cfg.AlwaysOpen {
		return true
	}
	return helper.InWindow(now, o.cfg.Location, o.cfg.MarketOpen, o.cfg.MarketClose)
}

func (o *Orchestrator) cycle(ctx context.Context, retry *helper.Retry) time.Duration {
	now := o.now()
	if !o.marketOpen(now) && o.deps.Machine.State() != sessions.StateOpen {
		cyclesTotal.WithLabelValues(o.key, "closed").Inc()
		return o.cfg.ClosedPoll
	}

	rctx, cancel := context.WithTimeout(ctx, o.requestTimeout())
	_, ltp, err := o.deps.Market.FetchLTP(rctx, o.key)
	cancel()
	if err != nil {
		wait := retry.Fail()
		cyclesTotal.WithLabelValues(o.key, "ltp_error").Inc()
		o.log.Warn("fetch ltp failed", zap.Error(err), zap.Int("failures", retry.Failures()), zap.Duration("wait", wait))
		return wait
	}
	retry.Reset()

	newBar := false
	rctx, cancel = context.WithTimeout(ctx, o.requestTimeout())
	bar, err := o.deps.Market.FetchLatestBar(rctx, o.key)
	cancel()
	switch {
	case err != nil:
		o.log.Warn("fetch latest bar failed", zap.Error(err))
	case bar == nil:
	case !bar.Time.After(o.deps.Series.LastTime()):
		// same bar as last cycle
	default:
		if err := o.deps.Series.Append(*bar); err != nil {
			o.log.Warn("append bar rejected", zap.Error(err), zap.Time("bar", bar.Time))
		} else {
			newBar = true
		}
	}

	tr := o.deps.Machine.Cycle(ctx, sessions.CycleInput{
		Now:       now,
		LastPrice: ltp,
		NewBar:    newBar,
		Frame:     o.deps.Series,
	})
	if tr.Changed() || tr.Reason != "" {
		transitionsTotal.WithLabelValues(o.key, tr.To.String(), tr.Reason).Inc()
		o.log.Info("position transition",
			zap.Stringer("from", tr.From),
			zap.Stringer("to", tr.To),
			zap.String("reason", tr.Reason),
			zap.Stringer("signal", tr.Signal),
			zap.Float64("ltp", ltp),
		)
	}

	result := "same_bar"
	if newBar {
		result = "new_bar"
	}
	cyclesTotal.WithLabelValues(o.key, result).Inc()
	if o.deps.Heartbeat != nil {
		o.deps.Heartbeat.TouchCycle(o.key, now)
	}
	return o.cfg.Throttle
}
