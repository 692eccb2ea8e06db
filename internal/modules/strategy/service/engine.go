package service

import (
	"math"

	"go.uber.org/zap"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
)

type EngineConfig struct {
	Token               string
	ATRMultiplier       float64
	RiskReward          float64
	RSINeutral          float64
	LongEntryFilterMax  float64
	ShortEntryFilterMin float64
	RoundOffOffset      float64
	StrikeStep          float64
	PricePrecision      int32
}

// EngineState is the engine's view of the trade it signalled.
type EngineState struct {
	Side            models.PositionSide
	Entry           float64
	StopLoss        float64
	TakeProfit      float64
	TrailingExtreme float64
	TrailingStop    float64
}

// Engine turns the tail of an indicator frame into entry/exit signals and
// keeps the trailing stop of the trade it opened. One engine per underlying,
// driven by a single goroutine.
type Engine struct {
	cfg EngineConfig
	st  EngineState
	log *zap.Logger
}

func NewEngine(cfg EngineConfig, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{cfg: cfg, st: EngineState{Side: models.Flat}, log: log}
}

func (e *Engine) Name() string { return "ha_atr_strike" }

func (e *Engine) Position() EngineState { return e.st }

// ResetState forgets the tracked trade. Safe to call repeatedly.
func (e *Engine) ResetState() {
	e.st = EngineState{Side: models.Flat}
}

func (e *Engine) px(v float64) float64 { return helper.Round(v, e.cfg.PricePrecision) }

// bullish and bearish compare the HA candle at the quoted precision.
func (e *Engine) bullish(r models.IndicatorSnapshot) bool { return e.px(r.HAClose) > e.px(r.HAOpen) }
func (e *Engine) bearish(r models.IndicatorSnapshot) bool { return e.px(r.HAClose) < e.px(r.HAOpen) }

// Evaluate looks at the last row of f. It needs two rows and a complete last
// row; otherwise it returns no signal and leaves the state alone.
func (e *Engine) Evaluate(f Frame) models.Signal {
	if f == nil || f.Len() < 2 {
		return models.NoSignal()
	}
	last := f.At(f.Len() - 1)
	if !last.Complete() {
		return models.NoSignal()
	}

	switch e.st.Side {
	case models.Long:
		return e.exitLong(last)
	case models.Short:
		return e.exitShort(last)
	}
	return e.entry(last)
}

func (e *Engine) entry(r models.IndicatorSnapshot) models.Signal {
	c := e.cfg
	haClose := e.px(r.HAClose)
	atr := r.ATR.V
	base, entry, trend := r.RSIBase.V, r.RSIEntry.V, r.RSITrend.V

	switch {
	case e.bullish(r) && base > c.RSINeutral && trend > c.RSINeutral && entry < c.LongEntryFilterMax:
		sl := e.px(haClose - atr*c.ATRMultiplier)
		tp := e.px(haClose + c.RiskReward*(haClose-sl))
		e.st = EngineState{
			Side:            models.Long,
			Entry:           haClose,
			StopLoss:        sl,
			TakeProfit:      tp,
			TrailingExtreme: r.HAHigh,
			TrailingStop:    sl,
		}
		sig := models.Signal{
			Kind:       models.SignalBuyEntry,
			Price:      haClose,
			StopLoss:   sl,
			TakeProfit: tp,
			Strike:     helper.FloorToStep(haClose-c.RoundOffOffset, c.StrikeStep),
			At:         r.Time,
		}
		e.logSignal(r, sig)
		return sig

	case e.bearish(r) && base < c.RSINeutral && trend < c.RSINeutral && entry > c.ShortEntryFilterMin:
		sl := e.px(haClose + atr*c.ATRMultiplier)
		tp := e.px(haClose - c.RiskReward*(sl-haClose))
		e.st = EngineState{
			Side:            models.Short,
			Entry:           haClose,
			StopLoss:        sl,
			TakeProfit:      tp,
			TrailingExtreme: r.HALow,
			TrailingStop:    sl,
		}
		sig := models.Signal{
			Kind:       models.SignalSellEntry,
			Price:      haClose,
			StopLoss:   sl,
			TakeProfit: tp,
			Strike:     helper.CeilToStep(haClose+c.RoundOffOffset, c.StrikeStep),
			At:         r.Time,
		}
		e.logSignal(r, sig)
		return sig
	}
	return models.NoSignal()
}

func (e *Engine) exitLong(r models.IndicatorSnapshot) models.Signal {
	haClose := e.px(r.HAClose)
	e.st.TrailingExtreme = math.Max(e.st.TrailingExtreme, r.HAHigh)
	e.st.TrailingStop = e.px(e.st.TrailingExtreme - r.ATR.V*e.cfg.ATRMultiplier)

	var reason string
	switch {
	case haClose <= e.st.TrailingStop:
		reason = "trailing_stop"
	case haClose >= e.st.TakeProfit:
		reason = "take_profit"
	case r.RSIBase.V < e.cfg.RSINeutral:
		reason = "rsi_reversal"
	default:
		return models.NoSignal()
	}
	return e.exit(r, models.SignalBuyExit, haClose, reason)
}

func (e *Engine) exitShort(r models.IndicatorSnapshot) models.Signal {
	haClose := e.px(r.HAClose)
	e.st.TrailingExtreme = math.Min(e.st.TrailingExtreme, r.HALow)
	e.st.TrailingStop = e.px(e.st.TrailingExtreme + r.ATR.V*e.cfg.ATRMultiplier)

	var reason string
	switch {
	case haClose >= e.st.TrailingStop:
		reason = "trailing_stop"
	case haClose <= e.st.TakeProfit:
		reason = "take_profit"
	case r.RSIBase.V > e.cfg.RSINeutral:
		reason = "rsi_reversal"
	default:
		return models.NoSignal()
	}
	return e.exit(r, models.SignalSellExit, haClose, reason)
}

func (e *Engine) exit(r models.IndicatorSnapshot, kind models.SignalKind, haClose float64, reason string) models.Signal {
	sig := models.Signal{
		Kind:       kind,
		Price:      haClose,
		StopLoss:   e.st.TrailingStop,
		TakeProfit: e.st.TakeProfit,
		At:         r.Time,
		Reason:     reason,
	}
	e.logSignal(r, sig)
	e.ResetState()
	return sig
}

func (e *Engine) logSignal(r models.IndicatorSnapshot, sig models.Signal) {
	e.log.Info("signal",
		zap.String("token", e.cfg.Token),
		zap.Stringer("kind", sig.Kind),
		zap.Time("bar", r.Time),
		zap.Float64("open", r.Open),
		zap.Float64("high", r.High),
		zap.Float64("low", r.Low),
		zap.Float64("close", r.Close),
		zap.Float64("ha_close", r.HAClose),
		zap.Float64("atr", r.ATR.V),
		zap.Float64("sl", sig.StopLoss),
		zap.Float64("tp", sig.TakeProfit),
		zap.Float64("strike", sig.Strike),
		zap.String("reason", sig.Reason),
	)
}
