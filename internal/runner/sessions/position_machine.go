package sessions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
	strategy "signal_bot/internal/modules/strategy/service"
)

type InstrumentLookup interface {
	Lookup(strike float64, side models.OptionSide) (models.Instrument, bool)
}

type Submitter interface {
	Submit(ctx context.Context, sub models.Submission) (bool, error)
}

type KillSwitch interface {
	KillRequested(ctx context.Context, key string) bool
}

type Journal interface {
	Record(ctx context.Context, ev models.PositionEvent) error
}

type Notifier interface {
	Sendf(format string, args ...any)
}

// StreamStarter starts and stops the derivative price stream of an open position.
type StreamStarter interface {
	StartStream(ctx context.Context, owner string, inst models.Instrument) error
	StopStream(owner, key string)
}

type Engine interface {
	Evaluate(f strategy.Frame) models.Signal
	ResetState()
}

type State int

const (
	StateFlat State = iota
	StateAwaitingAck
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateAwaitingAck:
		return "AWAITING_ACK"
	case StateOpen:
		return "OPEN"
	default:
		return "FLAT"
	}
}

type MachineDeps struct {
	Engine   Engine
	Lookup   InstrumentLookup
	Submit   Submitter
	Kill     KillSwitch
	Journal  Journal
	Notifier Notifier
	Streams  StreamStarter
	Log      *zap.Logger
}

type MachineConfig struct {
	Key          string
	StrategyCode string
	Location     *time.Location
	EntryCutoff  helper.Clock
	ExitCutoff   helper.Clock
}

// CycleInput is what the orchestrator observed in one loop iteration.
type CycleInput struct {
	Now       time.Time
	LastPrice float64
	// NewBar is set when Frame got a new row this cycle.
	NewBar bool
	Frame  strategy.Frame
}

// Transition is the outcome of one Cycle. From == To when nothing changed.
type Transition struct {
	From   State
	To     State
	Signal models.Signal
	Reason string
}

func (t Transition) Changed() bool { return t.From != t.To }

// PositionMachine owns the position of one underlying. It is driven by the
// orchestrator goroutine only.
type PositionMachine struct {
	deps  MachineDeps
	cfg   MachineConfig
	state State
	pos   models.Position
	log   *zap.Logger
}

func NewPositionMachine(deps MachineDeps, cfg MachineConfig) *PositionMachine {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &PositionMachine{
		deps:  deps,
		cfg:   cfg,
		state: StateFlat,
		pos:   models.FlatPosition(),
		log:   log.With(zap.String("token", cfg.Key)),
	}
}

func (m *PositionMachine) State() State { return m.state }

func (m *PositionMachine) Position() models.Position { return m.pos }

// Cycle runs one step. While open: hard stop/target or exit cutoff, then the
// admin kill flag, then the engine exit on a new bar. While flat: the engine
// entry on a new bar.
func (m *PositionMachine) Cycle(ctx context.Context, in CycleInput) Transition {
	if m.state == StateOpen {
		return m.whileOpen(ctx, in)
	}
	if !in.NewBar || in.Frame == nil {
		return m.stay("")
	}

	sig := m.deps.Engine.Evaluate(in.Frame)
	switch {
	case sig.Kind.IsEntry():
		return m.enter(ctx, in, sig)
	case sig.Kind.IsExit():
		m.log.Debug("exit signal while flat, discarded", zap.Stringer("kind", sig.Kind))
	}
	return m.stay("")
}

func (m *PositionMachine) stay(reason string) Transition {
	return Transition{From: m.state, To: m.state, Reason: reason}
}

func (m *PositionMachine) enter(ctx context.Context, in CycleInput, sig models.Signal) Transition {
	if helper.AtOrAfter(in.Now, m.cfg.Location, m.cfg.EntryCutoff) {
		m.log.Info("entry after cutoff ignored", zap.Stringer("kind", sig.Kind), zap.Stringer("cutoff", m.cfg.EntryCutoff))
		m.deps.Engine.ResetState()
		return m.stay("entry_cutoff")
	}

	side := models.SideFor(sig.Kind)
	inst, ok := m.deps.Lookup.Lookup(sig.Strike, side)
	if !ok {
		m.log.Warn("no derivative for strike",
			zap.Float64("strike", sig.Strike),
			zap.String("side", string(side)),
		)
		m.deps.Engine.ResetState()
		return m.stay("no_derivative")
	}

	id := uuid.NewString()
	m.state = StateAwaitingAck
	ack, err := m.deps.Submit.Submit(ctx, models.Submission{
		UnderlyingKey: m.cfg.Key,
		Kind:          sig.Kind,
		DerivativeID:  inst.Token,
		StrategyCode:  m.cfg.StrategyCode,
		PositionID:    id,
		Derivative:    inst,
	})
	if err != nil || !ack {
		m.log.Warn("entry rejected",
			zap.Stringer("kind", sig.Kind),
			zap.String("derivative", inst.Token),
			zap.Bool("ack", ack),
			zap.Error(err),
		)
		m.deps.Engine.ResetState()
		m.state = StateFlat
		return Transition{From: StateFlat, To: StateFlat, Signal: sig, Reason: "rejected"}
	}

	posSide := models.Long
	extreme := in.Frame.At(in.Frame.Len() - 1).HAHigh
	if sig.Kind == models.SignalSellEntry {
		posSide = models.Short
		extreme = in.Frame.At(in.Frame.Len() - 1).HALow
	}
	derivative := inst
	m.pos = models.Position{
		State:           posSide,
		Entry:           sig.Price,
		StopLoss:        sig.StopLoss,
		TakeProfit:      sig.TakeProfit,
		TrailingExtreme: extreme,
		TrailingStop:    sig.StopLoss,
		ID:              id,
		Derivative:      &derivative,
		OpenedAt:        in.Now,
	}
	m.state = StateOpen

	m.log.Info("position opened",
		zap.String("position_id", id),
		zap.String("side", string(posSide)),
		zap.String("derivative", inst.Token),
		zap.String("symbol", inst.Symbol),
		zap.Float64("entry", sig.Price),
		zap.Float64("sl", sig.StopLoss),
		zap.Float64("tp", sig.TakeProfit),
	)
	if m.deps.Streams != nil {
		if err := m.deps.Streams.StartStream(ctx, m.cfg.Key, inst); err != nil {
			m.log.Warn("start derivative stream", zap.String("derivative", inst.Token), zap.Error(err))
		}
	}
	m.record(ctx, sig.Kind, sig.Price, sig.Strike, "entry", in.Now)
	m.notify("%s %s %s @ %.2f SL=%.2f TP=%.2f (%s)", m.cfg.Key, sig.Kind, inst.Symbol, sig.Price, sig.StopLoss, sig.TakeProfit, id)

	return Transition{From: StateFlat, To: StateOpen, Signal: sig, Reason: "entry"}
}

func (m *PositionMachine) whileOpen(ctx context.Context, in CycleInput) Transition {
	if reason := m.hardExit(in); reason != "" {
		return m.exit(ctx, in, in.LastPrice, reason, true)
	}
	if m.deps.Kill != nil && m.deps.Kill.KillRequested(ctx, m.cfg.Key) {
		return m.exit(ctx, in, in.LastPrice, "admin_kill", true)
	}
	if !in.NewBar || in.Frame == nil {
		return m.stay("")
	}

	sig := m.deps.Engine.Evaluate(in.Frame)
	if !sig.Kind.IsExit() {
		return m.stay("")
	}
	if sig.Kind != m.exitKind() {
		m.log.Warn("exit signal for the other side, discarded", zap.Stringer("kind", sig.Kind))
		return m.stay("")
	}
	return m.exit(ctx, in, sig.Price, sig.Reason, false)
}

// hardExit checks the last traded price against the levels fixed at entry
// and the wall-clock exit cutoff.
func (m *PositionMachine) hardExit(in CycleInput) string {
	ltp := in.LastPrice
	if ltp > 0 {
		switch m.pos.State {
		case models.Long:
			if ltp <= m.pos.StopLoss {
				return "stop_loss"
			}
			if ltp >= m.pos.TakeProfit {
				return "target"
			}
		case models.Short:
			if ltp >= m.pos.StopLoss {
				return "stop_loss"
			}
			if ltp <= m.pos.TakeProfit {
				return "target"
			}
		}
	}
	if helper.AtOrAfter(in.Now, m.cfg.Location, m.cfg.ExitCutoff) {
		return "exit_cutoff"
	}
	return ""
}

func (m *PositionMachine) exitKind() models.SignalKind {
	if m.pos.State == models.Short {
		return models.SignalSellExit
	}
	return models.SignalBuyExit
}

// exit submits the exit and clears the position whatever the sink answers.
func (m *PositionMachine) exit(ctx context.Context, in CycleInput, price float64, reason string, forced bool) Transition {
	kind := m.exitKind()
	pos := m.pos

	sub := models.Submission{
		UnderlyingKey: m.cfg.Key,
		Kind:          kind,
		StrategyCode:  m.cfg.StrategyCode,
		PositionID:    pos.ID,
	}
	if pos.Derivative != nil {
		sub.DerivativeID = pos.Derivative.Token
		sub.Derivative = *pos.Derivative
	}
	ack, err := m.deps.Submit.Submit(ctx, sub)
	if err != nil || !ack {
		m.log.Error("exit submission failed, clearing position anyway",
			zap.String("position_id", pos.ID),
			zap.Bool("ack", ack),
			zap.Error(err),
		)
	}

	if forced {
		m.deps.Engine.ResetState()
	}
	if m.deps.Streams != nil && pos.Derivative != nil {
		m.deps.Streams.StopStream(m.cfg.Key, pos.Derivative.Token)
	}

	m.log.Info("position closed",
		zap.String("position_id", pos.ID),
		zap.Stringer("kind", kind),
		zap.Float64("price", price),
		zap.String("reason", reason),
	)
	m.record(ctx, kind, price, 0, reason, in.Now)
	m.notify("%s %s @ %.2f (%s)", m.cfg.Key, kind, price, reason)

	m.pos = models.FlatPosition()
	m.state = StateFlat
	return Transition{
		From:   StateOpen,
		To:     StateFlat,
		Signal: models.Signal{Kind: kind, Price: price, At: in.Now, Reason: reason},
		Reason: reason,
	}
}

func (m *PositionMachine) record(ctx context.Context, kind models.SignalKind, price, strike float64, reason string, at time.Time) {
	if m.deps.Journal == nil {
		return
	}
	ev := models.PositionEvent{
		PositionID:    m.pos.ID,
		UnderlyingKey: m.cfg.Key,
		Kind:          kind,
		Side:          m.pos.State,
		Price:         price,
		StopLoss:      m.pos.StopLoss,
		TakeProfit:    m.pos.TakeProfit,
		Strike:        strike,
		Reason:        reason,
		At:            at,
	}
	if d := m.pos.Derivative; d != nil {
		ev.Derivative, ev.Symbol = d.Token, d.Symbol
		if strike == 0 {
			ev.Strike = d.Strike
		}
	}
	if err := m.deps.Journal.Record(ctx, ev); err != nil {
		m.log.Warn("journal record", zap.String("position_id", ev.PositionID), zap.Error(err))
	}
}

func (m *PositionMachine) notify(format string, args ...any) {
	if m.deps.Notifier == nil {
		return
	}
	m.deps.Notifier.Sendf(format, args...)
}

func (m *PositionMachine) String() string {
	return fmt.Sprintf("%s %s %s", m.cfg.Key, m.state, m.pos.State)
}
