package location

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTrackerCurrent(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(2 * time.Minute)

	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	now := base
	tracker.SetClock(func() time.Time { return now })

	t.Run("no fix", func(t *testing.T) {
		_, err := tracker.Current(ctx, "user-1")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	require.NoError(t, tracker.Report(ctx, "user-1", Fix{Lat: 10.76, Lng: 78.81, Accuracy: 5}))

	t.Run("fresh fix", func(t *testing.T) {
		fix, err := tracker.Current(ctx, "user-1")
		require.NoError(t, err)
		assert.Equal(t, 10.76, fix.Lat)
	})

	t.Run("expired fix", func(t *testing.T) {
		now = base.Add(3 * time.Minute)
		_, err := tracker.Current(ctx, "user-1")
		assert.ErrorIs(t, err, ErrUnavailable)
	})

	t.Run("denied fix", func(t *testing.T) {
		require.NoError(t, tracker.Report(ctx, "user-1", Fix{Denied: true, ReportedAt: now}))
		_, err := tracker.Current(ctx, "user-1")
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestMemoryTrackerActiveUsers(t *testing.T) {
	ctx := context.Background()
	tracker := NewMemoryTracker(2 * time.Minute)

	base := time.Date(2026, 8, 24, 9, 0, 0, 0, time.UTC)
	now := base
	tracker.SetClock(func() time.Time { return now })

	require.NoError(t, tracker.Report(ctx, "user-1", Fix{Lat: 1, Lng: 2}))
	now = base.Add(90 * time.Second)
	require.NoError(t, tracker.Report(ctx, "user-2", Fix{Lat: 3, Lng: 4}))

	users, err := tracker.ActiveUsers(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"user-1", "user-2"}, users)

	// user-1's fix ages out; user-2 stays fresh.
	now = base.Add(150 * time.Second)
	users, err = tracker.ActiveUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"user-2"}, users)
}
