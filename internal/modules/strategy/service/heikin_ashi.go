package service

import "math"

type haCandle struct {
	open, high, low, close float64
}

// haState carries the previous Heikin-Ashi candle.
type haState struct {
	prev    haCandle
	hasPrev bool
}

func (h haState) step(open, high, low, close float64) (haState, haCandle) {
	c := haCandle{close: (open + high + low + close) / 4}
	if h.hasPrev {
		c.open = (h.prev.open + h.prev.close) / 2
	} else {
		c.open = (open + close) / 2
	}
	c.high = math.Max(high, math.Max(c.open, c.close))
	c.low = math.Min(low, math.Min(c.open, c.close))
	h.prev, h.hasPrev = c, true
	return h, c
}
