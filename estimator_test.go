package floortrack

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEstimate(t *testing.T) {
	base := &ProductionRecord{
		ID:          "WO-1",
		StartTime:   t0,
		TargetCount: 10,
		CycleTime:   5,
		Status:      StatusActive,
		Version:     1,
	}

	t.Run("whole parts only", func(t *testing.T) {
		updated, changed := estimate(base, t0.Add(47*time.Second))
		require.True(t, changed)
		require.Equal(t, 9, updated.PartCount)
		require.Equal(t, StatusActive, updated.Status)
		require.Equal(t, int64(2), updated.Version)
		require.True(t, updated.EndTime.IsZero())
	})

	t.Run("reaching target completes", func(t *testing.T) {
		updated, changed := estimate(base, t0.Add(50*time.Second))
		require.True(t, changed)
		require.Equal(t, 10, updated.PartCount)
		require.Equal(t, StatusCompleted, updated.Status)
		require.Equal(t, t0.Add(50*time.Second), updated.EndTime)
	})

	t.Run("overshoot clamps to target", func(t *testing.T) {
		updated, changed := estimate(base, t0.Add(time.Hour))
		require.True(t, changed)
		require.Equal(t, 10, updated.PartCount)
		require.Equal(t, StatusCompleted, updated.Status)
	})

	t.Run("count never regresses", func(t *testing.T) {
		r := base.clone()
		r.PartCount = 9

		_, changed := estimate(r, t0.Add(40*time.Second)) // extrapolates to 8
		require.False(t, changed)
	})

	t.Run("no elapsed change is a no-op", func(t *testing.T) {
		r, changed := estimate(base, t0.Add(47*time.Second))
		require.True(t, changed)

		_, changed = estimate(r, t0.Add(47*time.Second))
		require.False(t, changed)
	})

	t.Run("completed records are frozen", func(t *testing.T) {
		r := base.clone()
		r.Status = StatusCompleted
		r.PartCount = 10

		_, changed := estimate(r, t0.Add(time.Hour))
		require.False(t, changed)
	})

	t.Run("paused records are frozen", func(t *testing.T) {
		r := base.clone()
		r.Status = StatusPaused
		r.PartCount = 6

		_, changed := estimate(r, t0.Add(time.Hour))
		require.False(t, changed)
	})

	t.Run("unknown cycle time disables extrapolation", func(t *testing.T) {
		r := base.clone()
		r.CycleTime = 0

		_, changed := estimate(r, t0.Add(time.Hour))
		require.False(t, changed)
	})

	t.Run("original record never mutated", func(t *testing.T) {
		_, changed := estimate(base, t0.Add(time.Hour))
		require.True(t, changed)
		require.Equal(t, 0, base.PartCount)
		require.Equal(t, StatusActive, base.Status)
		require.Equal(t, int64(1), base.Version)
	})
}
