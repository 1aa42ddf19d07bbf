package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestLimiter_NotRateLimitedInitially(t *testing.T) {
	l := New()
	assert.False(t, l.IsRateLimited("shell"))
	assert.Equal(t, time.Duration(0), l.Remaining("shell"))
}

func TestLimiter_FirstTwoDenialsHaveNoBackoff(t *testing.T) {
	start := time.Now()
	l := New()
	l.now = fixedClock(start)

	l.TrackDenial("shell")
	assert.False(t, l.IsRateLimited("shell"))

	l.TrackDenial("shell")
	assert.False(t, l.IsRateLimited("shell"))
}

func TestLimiter_ThirdDenialBacksOffFiveSeconds(t *testing.T) {
	start := time.Now()
	l := New()
	l.now = fixedClock(start)

	l.TrackDenial("shell")
	l.TrackDenial("shell")
	l.TrackDenial("shell")

	assert.True(t, l.IsRateLimited("shell"))
	assert.InDelta(t, 5*time.Second, l.Remaining("shell"), float64(time.Millisecond))
}

// Invariant #4: after k denials, remaining(T) >= schedule[min(k,len)-1]
// until at least that long has elapsed.
func TestLimiter_Invariant_RemainingMeetsScheduleFloor(t *testing.T) {
	start := time.Now()
	l := New()
	l.now = fixedClock(start)

	for k := 1; k <= 8; k++ {
		l.TrackDenial("tool")
		want := backoffFor(k)
		got := l.Remaining("tool")
		assert.GreaterOrEqual(t, got, want, "denial #%d", k)
	}
}

func TestLimiter_SixthAndBeyondCapAtMaxBackoff(t *testing.T) {
	start := time.Now()
	l := New()
	l.now = fixedClock(start)

	for i := 0; i < 6; i++ {
		l.TrackDenial("shell")
	}
	assert.Equal(t, 300*time.Second, l.Remaining("shell"))

	l.TrackDenial("shell")
	assert.Equal(t, 300*time.Second, l.Remaining("shell"))
}

// Invariant #5: after any approval outcome, is_rate_limited(T) = false.
func TestLimiter_Invariant_ResetClearsRateLimit(t *testing.T) {
	start := time.Now()
	l := New()
	l.now = fixedClock(start)

	for i := 0; i < 5; i++ {
		l.TrackDenial("shell")
	}
	require := assert.New(t)
	require.True(l.IsRateLimited("shell"))

	l.Reset("shell")
	require.False(l.IsRateLimited("shell"))
	require.Equal(time.Duration(0), l.Remaining("shell"))
}

func TestLimiter_BackoffExpiresOverTime(t *testing.T) {
	start := time.Now()
	clockTime := start
	l := New()
	l.now = func() time.Time { return clockTime }

	l.TrackDenial("shell")
	l.TrackDenial("shell")
	l.TrackDenial("shell")
	assert.True(t, l.IsRateLimited("shell"))

	clockTime = start.Add(6 * time.Second)
	assert.False(t, l.IsRateLimited("shell"))
}

func TestLimiter_TracksPerTool(t *testing.T) {
	l := New()
	l.TrackDenial("shell")
	l.TrackDenial("shell")
	l.TrackDenial("shell")
	assert.True(t, l.IsRateLimited("shell"))
	assert.False(t, l.IsRateLimited("web_fetch"))
}
