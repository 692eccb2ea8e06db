package helper

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	b := Backoff{Min: time.Second, Max: 30 * time.Second, Factor: 2}

	assert.Equal(t, time.Second, b.Next(0))
	assert.Equal(t, time.Second, b.Next(1))
	assert.Equal(t, 2*time.Second, b.Next(2))
	assert.Equal(t, 16*time.Second, b.Next(5))
	assert.Equal(t, 30*time.Second, b.Next(6))
	assert.Equal(t, 30*time.Second, b.Next(50))
}

func TestBackoffJitterBounds(t *testing.T) {
	b := Backoff{Min: time.Second, Max: time.Second, Jitter: 0.2}
	for i := 0; i < 100; i++ {
		d := b.Next(3)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.LessOrEqual(t, d, 1200*time.Millisecond)
	}
}

func TestRetryResets(t *testing.T) {
	r := Retry{Backoff: Backoff{Min: time.Second, Max: 4 * time.Second}}
	assert.Equal(t, time.Second, r.Fail())
	assert.Equal(t, 2*time.Second, r.Fail())
	assert.Equal(t, 4*time.Second, r.Fail())
	assert.Equal(t, 4*time.Second, r.Fail())
	assert.Equal(t, 4, r.Failures())

	r.Reset()
	assert.Equal(t, time.Second, r.Fail())
}

func TestSleepInterrupted(t *testing.T) {
	done := make(chan struct{})
	close(done)
	assert.False(t, Sleep(done, time.Hour))
	assert.True(t, Sleep(nil, 0))
	assert.True(t, Sleep(nil, time.Millisecond))
}
