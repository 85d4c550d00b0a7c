package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRealClockNow(t *testing.T) {
	c := RealClock{}
	before := time.Now()
	got := c.Now()
	after := time.Now()

	assert.False(t, got.Before(before))
	assert.False(t, got.After(after))
}

func TestRealClockSince(t *testing.T) {
	c := RealClock{}
	start := time.Now().Add(-time.Second)
	assert.GreaterOrEqual(t, c.Since(start), time.Second)
}

func TestMockClockSleepAdvancesTime(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)

	c.Sleep(100 * time.Millisecond)
	c.Sleep(5 * time.Second)

	assert.Equal(t, []time.Duration{100 * time.Millisecond, 5 * time.Second}, c.Sleeps())
	assert.Equal(t, start.Add(100*time.Millisecond+5*time.Second), c.Now())
}

func TestMockClockSince(t *testing.T) {
	start := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMockClock(start)
	c.Advance(3 * time.Second)

	assert.Equal(t, 3*time.Second, c.Since(start))
}
