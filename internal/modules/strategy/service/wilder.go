package service

import (
	"math"
	"slices"

	"github.com/montanaflynn/stats"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
)

// wilderState is Wilder's smoothed moving average (RMA), seeded with the simple
// mean of the first period inputs. It has value semantics: step returns the
// next state and leaves the receiver untouched, which lets callers compute a
// provisional value without committing it.
type wilderState struct {
	period int
	seed   []float64
	value  float64
	ready  bool
}

func newWilder(period int) wilderState {
	if period < 1 {
		period = 1
	}
	return wilderState{period: period}
}

func (w wilderState) step(x float64) wilderState {
	if w.ready {
		w.value = (w.value*float64(w.period-1) + x) / float64(w.period)
		return w
	}
	w.seed = append(slices.Clip(w.seed), x)
	if len(w.seed) == w.period {
		mean, err := stats.Mean(w.seed)
		if err == nil {
			w.value = mean
			w.ready = true
		}
		w.seed = nil
	}
	return w
}

// rsiState is RSI over a close series.
type rsiState struct {
	prev    float64
	hasPrev bool
	gain    wilderState
	loss    wilderState
}

func newRSI(period int) rsiState {
	return rsiState{gain: newWilder(period), loss: newWilder(period)}
}

func (r rsiState) step(price float64) (rsiState, models.Value) {
	if !r.hasPrev {
		r.prev, r.hasPrev = price, true
		return r, models.None
	}
	change := price - r.prev
	r.prev = price
	r.gain = r.gain.step(math.Max(change, 0))
	r.loss = r.loss.step(math.Max(-change, 0))
	if !r.gain.ready {
		return r, models.None
	}
	g, l := r.gain.value, r.loss.value
	switch {
	case g == 0 && l == 0:
		// flat window, RSI is undefined
		return r, models.None
	case l == 0:
		return r, models.Some(100)
	}
	rsi := 100 - 100/(1+g/l)
	return r, models.Some(helper.Round(rsi, 2))
}

// atrState is ATR over Heikin-Ashi candles.
type atrState struct {
	prevClose float64
	hasPrev   bool
	tr        wilderState
}

func newATR(period int) atrState {
	return atrState{tr: newWilder(period)}
}

func (a atrState) step(high, low, close float64) (atrState, models.Value) {
	if !a.hasPrev {
		a.prevClose, a.hasPrev = close, true
		return a, models.None
	}
	tr := math.Max(high-low, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	a.prevClose = close
	a.tr = a.tr.step(tr)
	if !a.tr.ready {
		return a, models.None
	}
	return a, models.Some(helper.Round(a.tr.value, 6))
}
