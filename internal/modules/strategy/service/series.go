package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
)

var (
	ErrDuplicateBar  = errors.New("bar timestamp already present")
	ErrOutOfOrderBar = errors.New("bar older than series tail")
	ErrInvalidBar    = errors.New("invalid bar")
)

// InsufficientDataError means the series holds fewer bars than one indicator
// window. The engine treats it as "not ready".
type InsufficientDataError struct {
	Have int
	Need int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: have %d bars, need %d", e.Have, e.Need)
}

type SeriesConfig struct {
	ATRLength      int
	RSILength      int
	EntryFilterRes time.Duration
	TrendFilterRes time.Duration
	Location       *time.Location
	SessionStart   helper.Clock
	SessionEnd     helper.Clock
	// MaxRows trims the oldest rows; 0 keeps everything.
	MaxRows int
}

type seriesState struct {
	ha    haState
	atr   atrState
	rsi   rsiState
	entry bucketRSI
	trend bucketRSI
}

// Series is the rolling bar + indicator table of one underlying.
// It is owned by a single orchestrator goroutine and is not safe for concurrent use.
type Series struct {
	cfg  SeriesConfig
	rows []models.IndicatorSnapshot
	st   seriesState
}

func NewSeries(cfg SeriesConfig) *Series {
	if cfg.ATRLength < 1 {
		cfg.ATRLength = 14
	}
	if cfg.RSILength < 1 {
		cfg.RSILength = 14
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	s := &Series{cfg: cfg}
	s.reset()
	return s
}

func (s *Series) reset() {
	s.rows = s.rows[:0]
	s.st = seriesState{
		atr:   newATR(s.cfg.ATRLength),
		rsi:   newRSI(s.cfg.RSILength),
		entry: newBucketRSI(s.cfg.RSILength, s.cfg.EntryFilterRes, s.cfg.Location),
		trend: newBucketRSI(s.cfg.RSILength, s.cfg.TrendFilterRes, s.cfg.Location),
	}
}

// MinBars is one indicator window plus the bar that seeds the first difference.
func (s *Series) MinBars() int {
	return max(s.cfg.ATRLength, s.cfg.RSILength) + 1
}

// LoadInitial replaces the series with bars (sorted, duplicate timestamps and
// invalid bars dropped). The bars are kept even when an *InsufficientDataError
// is returned.
func (s *Series) LoadInitial(bars []models.Bar) error {
	sorted := make([]models.Bar, 0, len(bars))
	for _, b := range bars {
		if validBar(b) {
			sorted = append(sorted, b)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	s.reset()
	for _, b := range sorted {
		if n := len(s.rows); n > 0 && !b.Time.After(s.rows[n-1].Time) {
			continue
		}
		s.push(b)
	}
	if len(s.rows) < s.MinBars() {
		return &InsufficientDataError{Have: len(s.rows), Need: s.MinBars()}
	}
	return nil
}

// Append adds one bar and computes its row. Earlier rows are never touched.
func (s *Series) Append(bar models.Bar) error {
	if !validBar(bar) {
		return fmt.Errorf("%w: %+v", ErrInvalidBar, bar)
	}
	if n := len(s.rows); n > 0 {
		last := s.rows[n-1].Time
		switch {
		case bar.Time.Equal(last):
			return ErrDuplicateBar
		case bar.Time.Before(last):
			return fmt.Errorf("%w: %s < %s", ErrOutOfOrderBar, bar.Time, last)
		}
	}
	s.push(bar)
	return nil
}

func (s *Series) push(b models.Bar) {
	var ha haCandle
	s.st.ha, ha = s.st.ha.step(b.Open, b.High, b.Low, b.Close)

	row := models.IndicatorSnapshot{
		Bar:       b,
		HAOpen:    ha.open,
		HAHigh:    ha.high,
		HALow:     ha.low,
		HAClose:   ha.close,
		InSession: helper.InWindow(b.Time, s.cfg.Location, s.cfg.SessionStart, s.cfg.SessionEnd),
	}
	s.st.atr, row.ATR = s.st.atr.step(ha.high, ha.low, ha.close)
	s.st.rsi, row.RSIBase = s.st.rsi.step(ha.close)
	row.RSIEntry = s.st.entry.update(b.Time, ha.close)
	row.RSITrend = s.st.trend.update(b.Time, ha.close)

	s.rows = append(s.rows, row)
	if s.cfg.MaxRows > 0 && len(s.rows) > s.cfg.MaxRows {
		s.rows = append(s.rows[:0], s.rows[len(s.rows)-s.cfg.MaxRows:]...)
	}
}

func validBar(b models.Bar) bool {
	return !b.Time.IsZero() && b.Close > 0 && b.Open > 0 && b.High >= b.Low && b.Low > 0
}

func (s *Series) Len() int { return len(s.rows) }

func (s *Series) At(i int) models.IndicatorSnapshot { return s.rows[i] }

func (s *Series) Last() (models.IndicatorSnapshot, bool) {
	if len(s.rows) == 0 {
		return models.IndicatorSnapshot{}, false
	}
	return s.rows[len(s.rows)-1], true
}

// LastTime is the tail bar timestamp, zero when empty.
func (s *Series) LastTime() time.Time {
	if last, ok := s.Last(); ok {
		return last.Time
	}
	return time.Time{}
}

func (s *Series) Ready() bool { return len(s.rows) >= s.MinBars() }

// Snapshots returns a copy of all rows.
func (s *Series) Snapshots() []models.IndicatorSnapshot {
	out := make([]models.IndicatorSnapshot, len(s.rows))
	copy(out, s.rows)
	return out
}
