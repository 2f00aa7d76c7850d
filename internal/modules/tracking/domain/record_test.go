package domain_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtime/internal/modules/tracking/domain"
)

func TestRecordDuplicateOpenIsRejected(t *testing.T) {
	t.Parallel()
	record := domain.NewRecord("https://www.youtube.com/watch?v=abc", "Video")
	require.NoError(t, record.OpenInterval(at(0)))
	err := record.OpenInterval(at(5))
	assert.True(t, errors.Is(err, domain.ErrIntervalOpen))
	assert.Len(t, record.Intervals, 1)
	assert.True(t, record.HasOpenInterval())
}

func TestRecordCloseWithoutOpenIsNoop(t *testing.T) {
	t.Parallel()
	record := domain.NewRecord("u", "")
	assert.False(t, record.CloseInterval(at(1)))

	require.NoError(t, record.OpenInterval(at(0)))
	assert.True(t, record.CloseInterval(at(10)))
	assert.False(t, record.CloseInterval(at(20)), "second close is a no-op")
	assert.Len(t, record.Intervals, 1)
	assert.Equal(t, 10*time.Second, record.Watched())
}

func TestRecordWatchedIgnoresOpenInterval(t *testing.T) {
	t.Parallel()
	record := domain.NewRecord("u", "")
	require.NoError(t, record.OpenInterval(at(0)))
	record.CloseInterval(at(10))
	require.NoError(t, record.OpenInterval(at(20)))
	assert.Equal(t, 10*time.Second, record.Watched())
}

func TestRecordRecentlyActiveWindowBoundary(t *testing.T) {
	t.Parallel()
	now := at(0).Add(100 * time.Hour)
	window := 72 * time.Hour

	tooOld := domain.NewRecord("old", "")
	require.NoError(t, tooOld.OpenInterval(now.Add(-window-time.Hour)))
	tooOld.CloseInterval(now.Add(-window - time.Second))
	assert.False(t, tooOld.RecentlyActive(now, window))

	recent := domain.NewRecord("recent", "")
	require.NoError(t, recent.OpenInterval(now.Add(-window-time.Hour)))
	recent.CloseInterval(now.Add(-window + time.Second))
	assert.True(t, recent.RecentlyActive(now, window))

	empty := domain.NewRecord("empty", "")
	assert.False(t, empty.RecentlyActive(now, window))
}

func TestRecordRecentlyActiveUsesStartWhileOpen(t *testing.T) {
	t.Parallel()
	now := at(0).Add(100 * time.Hour)
	record := domain.NewRecord("u", "")
	require.NoError(t, record.OpenInterval(now.Add(-time.Hour)))
	ts, ok := record.LastActivity()
	require.True(t, ok)
	assert.Equal(t, now.Add(-time.Hour), ts)
	assert.True(t, record.RecentlyActive(now, 72*time.Hour))
}

func TestRecordWatchedSinceCountsIntervalsStartingInRange(t *testing.T) {
	t.Parallel()
	now := at(10000)
	record := domain.NewRecord("u", "")
	require.NoError(t, record.OpenInterval(now.Add(-7200*time.Second)))
	record.CloseInterval(now.Add(-7000 * time.Second))
	require.NoError(t, record.OpenInterval(now.Add(-1800*time.Second)))
	record.CloseInterval(now.Add(-900 * time.Second))

	assert.Equal(t, 900*time.Second, record.WatchedSince(now.Add(-time.Hour)))
	assert.Equal(t, 1100*time.Second, record.WatchedSince(now.Add(-3*time.Hour)))
}

func TestRecordWatchedSinceDoesNotClipStraddlingInterval(t *testing.T) {
	t.Parallel()
	record := domain.NewRecord("u", "")
	require.NoError(t, record.OpenInterval(at(0)))
	record.CloseInterval(at(100))
	assert.Zero(t, record.WatchedSince(at(50)), "interval starting before the range is excluded")
	assert.Equal(t, 100*time.Second, record.WatchedSince(at(0)), "start at the boundary is included")
}
