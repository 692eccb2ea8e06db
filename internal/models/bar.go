package models

import "time"

// Bar is one closed OHLCV candle of an underlying.
type Bar struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Value is an indicator reading that may not exist yet (warmup window).
type Value struct {
	V  float64
	OK bool
}

func Some(v float64) Value { return Value{V: v, OK: true} }

// None is an unavailable indicator value.
var None = Value{}

// IndicatorSnapshot is the derived row for one Bar. It is never mutated after
// the bar is appended.
type IndicatorSnapshot struct {
	Bar

	HAOpen  float64
	HAHigh  float64
	HALow   float64
	HAClose float64

	ATR      Value
	RSIBase  Value // base resolution
	RSIEntry Value // entry filter (lower resolution)
	RSITrend Value // trend filter (higher resolution)

	InSession bool
}

// Complete reports whether every indicator of the row is available.
func (s IndicatorSnapshot) Complete() bool {
	return s.ATR.OK && s.RSIBase.OK && s.RSIEntry.OK && s.RSITrend.OK
}
