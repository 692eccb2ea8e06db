package models

import "time"

// TickEvent is one last-traded-price update of a derivative.
type TickEvent struct {
	Key    string
	LTP    float64
	Symbol string
}

// DispatchItem is an admitted tick waiting for a worker.
type DispatchItem struct {
	TickEvent
	EnteredAt time.Time
}
