package models

import (
	"fmt"
	"time"
)

type SignalKind int

const (
	SignalNone SignalKind = iota
	SignalBuyEntry
	SignalSellEntry
	SignalBuyExit
	SignalSellExit
)

func (k SignalKind) String() string {
	switch k {
	case SignalBuyEntry:
		return "BUY_ENTRY"
	case SignalSellEntry:
		return "SELL_ENTRY"
	case SignalBuyExit:
		return "BUY_EXIT"
	case SignalSellExit:
		return "SELL_EXIT"
	default:
		return "NONE"
	}
}

func (k SignalKind) IsEntry() bool { return k == SignalBuyEntry || k == SignalSellEntry }
func (k SignalKind) IsExit() bool  { return k == SignalBuyExit || k == SignalSellExit }

// ExitFor is the exit kind that closes a position opened by an entry kind.
func (k SignalKind) ExitFor() SignalKind {
	switch k {
	case SignalBuyEntry:
		return SignalBuyExit
	case SignalSellEntry:
		return SignalSellExit
	default:
		return SignalNone
	}
}

// Signal is the tagged result of one engine evaluation.
// Entry kinds carry StopLoss, TakeProfit and Strike; exit kinds carry Price and Reason.
type Signal struct {
	Kind       SignalKind
	Price      float64
	StopLoss   float64
	TakeProfit float64
	Strike     float64
	At         time.Time
	Reason     string
}

func NoSignal() Signal { return Signal{Kind: SignalNone} }

func (s Signal) String() string {
	switch {
	case s.Kind.IsEntry():
		return fmt.Sprintf("%s @ %.2f SL=%.2f TP=%.2f strike=%.0f", s.Kind, s.Price, s.StopLoss, s.TakeProfit, s.Strike)
	case s.Kind.IsExit():
		return fmt.Sprintf("%s @ %.2f (%s)", s.Kind, s.Price, s.Reason)
	default:
		return s.Kind.String()
	}
}
