package helper

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Clock is a wall-clock time of day, stored as the offset from midnight.
type Clock time.Duration

// ParseClock accepts "HH:MM" or "HH:MM:SS".
func ParseClock(raw string) (Clock, error) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("clock %q: want HH:MM", raw)
	}
	var vals [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("clock %q: bad field %q", raw, p)
		}
		vals[i] = n
	}
	if vals[0] > 23 || vals[1] > 59 || vals[2] > 59 {
		return 0, fmt.Errorf("clock %q: out of range", raw)
	}
	d := time.Duration(vals[0])*time.Hour + time.Duration(vals[1])*time.Minute + time.Duration(vals[2])*time.Second
	return Clock(d), nil
}

func MustClock(raw string) Clock {
	c, err := ParseClock(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	d := time.Duration(c)
	h := d / time.Hour
	m := (d % time.Hour) / time.Minute
	return fmt.Sprintf("%02d:%02d", h, m)
}

// ClockOf returns t's time of day in loc.
func ClockOf(t time.Time, loc *time.Location) Clock {
	if loc != nil {
		t = t.In(loc)
	}
	h, m, s := t.Clock()
	return Clock(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(s)*time.Second)
}

// InWindow reports start <= clock(t) <= end, both ends inclusive.
func InWindow(t time.Time, loc *time.Location, start, end Clock) bool {
	c := ClockOf(t, loc)
	return c >= start && c <= end
}

// AtOrAfter reports clock(t) >= c.
func AtOrAfter(t time.Time, loc *time.Location, c Clock) bool {
	return ClockOf(t, loc) >= c
}

// Round rounds px to the given number of decimal places, half away from zero.
func Round(px float64, places int32) float64 {
	if math.IsNaN(px) || math.IsInf(px, 0) {
		return px
	}
	f, _ := decimal.NewFromFloat(px).Round(places).Float64()
	return f
}

// FloorToStep rounds px down to a multiple of step.
func FloorToStep(px, step float64) float64 {
	if step <= 0 {
		return px
	}
	d := decimal.NewFromFloat(px).Div(decimal.NewFromFloat(step)).Floor()
	f, _ := d.Mul(decimal.NewFromFloat(step)).Float64()
	return f
}

// CeilToStep rounds px up to a multiple of step.
func CeilToStep(px, step float64) float64 {
	if step <= 0 {
		return px
	}
	d := decimal.NewFromFloat(px).Div(decimal.NewFromFloat(step)).Ceil()
	f, _ := d.Mul(decimal.NewFromFloat(step)).Float64()
	return f
}

// BucketStart floors t to the resolution grid in loc (pandas resample, label=left).
func BucketStart(t time.Time, loc *time.Location, res time.Duration) time.Time {
	if res <= 0 {
		return t
	}
	if loc != nil {
		t = t.In(loc)
	}
	_, offset := t.Zone()
	shift := time.Duration(offset) * time.Second
	return t.Add(shift).Truncate(res).Add(-shift)
}
