package models

import "time"

type PositionSide string

const (
	Flat  PositionSide = "FLAT"
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// Position is the open trade on one underlying. The zero value with State Flat
// means nothing is open.
type Position struct {
	State           PositionSide
	Entry           float64
	StopLoss        float64
	TakeProfit      float64
	TrailingExtreme float64
	TrailingStop    float64
	ID              string
	Derivative      *Instrument
	OpenedAt        time.Time
}

func FlatPosition() Position { return Position{State: Flat} }

func (p Position) IsOpen() bool { return p.State == Long || p.State == Short }

// Submission is what goes to the external entry/exit sink.
type Submission struct {
	UnderlyingKey string
	Kind          SignalKind
	DerivativeID  string
	StrategyCode  string
	PositionID    string
	Derivative    Instrument
}

// PositionEvent is one journaled lifecycle transition.
type PositionEvent struct {
	PositionID    string
	UnderlyingKey string
	Derivative    string
	Symbol        string
	Kind          SignalKind
	Side          PositionSide
	Price         float64
	StopLoss      float64
	TakeProfit    float64
	Strike        float64
	Reason        string
	At            time.Time
}
