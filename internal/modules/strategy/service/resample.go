package service

import (
	"time"

	"signal_bot/internal/helper"
	"signal_bot/internal/models"
)

// bucketRSI is RSI on the last HA close of each resolution bucket. The row's
// own close is the provisional close of its (still open) bucket, so a value
// handed out for a row never depends on later rows.
type bucketRSI struct {
	res    time.Duration
	loc    *time.Location
	done   rsiState // state after the last completed bucket
	bucket time.Time
	open   bool
	last   float64
}

func newBucketRSI(period int, res time.Duration, loc *time.Location) bucketRSI {
	return bucketRSI{res: res, loc: loc, done: newRSI(period)}
}

func (b *bucketRSI) update(t time.Time, close float64) models.Value {
	start := helper.BucketStart(t, b.loc, b.res)
	if b.open && !start.Equal(b.bucket) {
		b.done, _ = b.done.step(b.last)
	}
	b.bucket, b.open, b.last = start, true, close

	_, v := b.done.step(close)
	return v
}
