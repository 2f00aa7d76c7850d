package service_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtime/internal/modules/tracking/domain"
	"watchtime/internal/modules/tracking/service"
)

const (
	urlA = "https://www.youtube.com/watch?v=aaaa1111"
	urlB = "https://www.youtube.com/watch?v=bbbb2222"
)

var t0 = time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return t0.Add(time.Duration(seconds) * time.Second)
}

func tab(id int64) *int64 { return &id }

func newReconciler() *service.Reconciler {
	return service.NewReconciler(domain.NewTracker("t", "d"), nil, 72*time.Hour)
}

func TestPlaySignalIsIdempotent(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	assert.True(t, r.HandlePlayback(at(0), "A", urlA, true, tab(1)))
	assert.False(t, r.HandlePlayback(at(5), "A", urlA, true, tab(1)))

	record, ok := r.Tracker().FindByURL(urlA)
	require.True(t, ok)
	assert.Len(t, record.Intervals, 1)
	assert.True(t, record.HasOpenInterval())
	assert.Len(t, r.Playing(), 1)
	assert.True(t, r.IsAnyVideoPlaying())
}

func TestPauseSignalIsIdempotent(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	r.HandlePlayback(at(0), "A", urlA, true, tab(1))
	assert.True(t, r.HandlePlayback(at(20), "A", urlA, false, tab(1)))
	assert.False(t, r.HandlePlayback(at(30), "A", urlA, false, tab(1)))

	record, _ := r.Tracker().FindByURL(urlA)
	require.Len(t, record.Intervals, 1)
	assert.False(t, record.HasOpenInterval())
	assert.Equal(t, 20*time.Second, record.Watched())
	assert.Empty(t, r.Playing())
	assert.Empty(t, r.ActiveTabs())
	assert.False(t, r.IsAnyVideoPlaying())
}

func TestStrayPauseIsIgnored(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	assert.False(t, r.HandlePlayback(at(0), "A", urlA, false, nil))
	assert.Empty(t, r.Tracker().Records())
}

func TestMalformedSignalsAreDropped(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	assert.False(t, r.HandlePlayback(at(0), "A", "", true, nil))
	assert.False(t, r.HandlePlayback(at(0), "A", "https://", true, nil))
	assert.False(t, r.HandlePlayback(at(0), "A", urlA, true, tab(-3)))
	assert.False(t, r.HandleTabUpdated(at(0), 1, "https://"))
	assert.False(t, r.HandleTabClosed(at(0), 99))
	assert.Empty(t, r.Tracker().Records())
	assert.Empty(t, r.Playing())
}

func TestTabCloseStopsPlayingVideo(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	r.HandlePlayback(at(0), "A", urlA, true, tab(1))
	require.Len(t, r.Playing(), 1)

	assert.True(t, r.HandleTabClosed(at(30), 1))
	assert.Empty(t, r.Playing())
	assert.Empty(t, r.ActiveTabs())
	record, _ := r.Tracker().FindByURL(urlA)
	assert.Equal(t, 30*time.Second, record.Watched())
	assert.False(t, r.IsAnyVideoPlaying())
	assert.InDelta(t, 30.0, r.TotalWatchedSeconds(), 1e-9)
}

func TestTabCloseMatchesShortenedURL(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	r.HandlePlayback(at(0), "A", urlA, true, nil)
	r.HandlePlayback(at(0), "B", urlB, true, tab(7))
	assert.False(t, r.HandleTabUpdated(at(1), 7, "https://youtu.be/bbbb2222"), "same video key is not a navigation")
	assert.Len(t, r.Playing(), 2)
	assert.Equal(t, "https://youtu.be/bbbb2222", r.ActiveTabs()[7])

	assert.True(t, r.HandleTabClosed(at(40), 7))
	playing := r.Playing()
	require.Len(t, playing, 1)
	assert.Equal(t, urlA, playing[0].URL)
	record, _ := r.Tracker().FindByURL(urlB)
	assert.Equal(t, 40*time.Second, record.Watched())
	assert.True(t, r.IsAnyVideoPlaying())
}

func TestTabCloseStopsItsOwnVideoWhenKeyIsAmbiguous(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	const (
		withOffset = "https://www.youtube.com/watch?v=abc12345&t=5"
		plain      = "https://www.youtube.com/watch?v=abc12345"
	)
	r.HandlePlayback(at(0), "A", withOffset, true, tab(1))
	r.HandlePlayback(at(10), "A", withOffset, false, tab(1))
	r.HandlePlayback(at(20), "A", plain, true, tab(2))
	_, matches := r.Tracker().FindByKey(plain)
	require.Equal(t, 2, matches)

	assert.True(t, r.HandleTabClosed(at(50), 2))
	assert.Empty(t, r.Playing())
	assert.Empty(t, r.ActiveTabs())
	assert.False(t, r.IsAnyVideoPlaying())

	record, _ := r.Tracker().FindByURL(plain)
	assert.False(t, record.HasOpenInterval())
	assert.Equal(t, 30*time.Second, record.Watched())

	assert.False(t, r.Flush(at(3650)))
	assert.Equal(t, 30*time.Second, record.Watched())
	assert.InDelta(t, 40.0, r.TotalWatchedSeconds(), 1e-9)
}

func TestTabCloseKeepsVideoHostedByAnotherTab(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	r.HandlePlayback(at(0), "A", urlA, true, tab(1))
	r.HandlePlayback(at(0), "A", urlA, true, tab(2))

	assert.True(t, r.HandleTabClosed(at(10), 2))
	playing := r.Playing()
	require.Len(t, playing, 1)
	require.NotNil(t, playing[0].TabID)
	assert.Equal(t, int64(1), *playing[0].TabID)
	record, _ := r.Tracker().FindByURL(urlA)
	assert.True(t, record.HasOpenInterval())

	assert.True(t, r.HandleTabClosed(at(30), 1))
	assert.Empty(t, r.Playing())
	assert.Equal(t, 30*time.Second, record.Watched())
	assert.False(t, r.IsAnyVideoPlaying())
}

func TestTabNavigationEndsSessionOfPreviousVideo(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	r.HandlePlayback(at(0), "A", urlA, true, tab(1))
	assert.True(t, r.HandleTabUpdated(at(50), 1, urlB))
	assert.Empty(t, r.Playing())
	assert.Equal(t, map[int64]string{1: urlB}, r.ActiveTabs())
	record, _ := r.Tracker().FindByURL(urlA)
	assert.Equal(t, 50*time.Second, record.Watched())

	assert.True(t, r.HandlePlayback(at(60), "B", urlB, true, tab(1)))
	assert.True(t, r.HandleTabClosed(at(70), 1))
	recordB, _ := r.Tracker().FindByURL(urlB)
	assert.Equal(t, 10*time.Second, recordB.Watched())
}

func TestTabNavigationKeepsVideoHostedByAnotherTab(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	r.HandlePlayback(at(0), "A", urlA, true, tab(1))
	r.HandlePlayback(at(0), "A", urlA, true, tab(2))
	assert.Equal(t, map[int64]string{1: urlA, 2: urlA}, r.ActiveTabs())

	assert.True(t, r.HandleTabUpdated(at(10), 1, urlB))
	playing := r.Playing()
	require.Len(t, playing, 1)
	require.NotNil(t, playing[0].TabID)
	assert.Equal(t, int64(2), *playing[0].TabID)
	record, _ := r.Tracker().FindByURL(urlA)
	assert.True(t, record.HasOpenInterval())
}

func TestUntrackedTabUpdateIsIgnored(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	assert.False(t, r.HandleTabUpdated(at(0), 5, urlA))
	assert.Empty(t, r.ActiveTabs())
}

func TestGlobalTimerFollowsPlayingSet(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	r.HandlePlayback(at(0), "A", urlA, true, nil)
	r.HandlePlayback(at(10), "B", urlB, true, nil)
	r.HandlePlayback(at(20), "A", urlA, false, nil)
	assert.True(t, r.IsAnyVideoPlaying())
	r.HandlePlayback(at(30), "B", urlB, false, nil)
	assert.False(t, r.IsAnyVideoPlaying())

	sessions := r.Tracker().Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 30*time.Second, sessions[0].Duration())
	assert.InDelta(t, 30.0, r.TotalWatchedSeconds(), 1e-9)
}

func TestFlushClosesAndReopensPlayingVideos(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	assert.False(t, r.Flush(at(0)))

	r.HandlePlayback(at(0), "A", urlA, true, tab(1))
	assert.True(t, r.Flush(at(10)))
	assert.True(t, r.Flush(at(20)))

	record, _ := r.Tracker().FindByURL(urlA)
	require.Len(t, record.Intervals, 3)
	assert.Equal(t, 20*time.Second, record.Watched())
	assert.True(t, record.HasOpenInterval())
	assert.Len(t, r.Playing(), 1)
	assert.True(t, r.IsAnyVideoPlaying())
	assert.InDelta(t, 20.0, r.TotalWatchedSeconds(), 1e-9)

	r.HandlePlayback(at(25), "A", urlA, false, tab(1))
	assert.Equal(t, 25*time.Second, record.Watched())
}

func TestStopAllEndsEverySession(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	assert.False(t, r.StopAll(at(0)))
	r.HandlePlayback(at(0), "A", urlA, true, tab(1))
	r.HandlePlayback(at(5), "B", urlB, true, tab(2))
	assert.True(t, r.StopAll(at(15)))
	assert.Empty(t, r.Playing())
	assert.Empty(t, r.ActiveTabs())
	assert.False(t, r.IsAnyVideoPlaying())
	assert.InDelta(t, 15.0, r.TotalWatchedSeconds(), 1e-9)
}

func TestQueries(t *testing.T) {
	t.Parallel()
	r := newReconciler()
	r.SetLocation(time.UTC)
	now := t0
	r.HandlePlayback(now.Add(-7200*time.Second), "A", urlA, true, nil)
	r.HandlePlayback(now.Add(-7000*time.Second), "A", urlA, false, nil)
	r.HandlePlayback(now.Add(-1800*time.Second), "A", urlA, true, nil)
	r.HandlePlayback(now.Add(-900*time.Second), "A", urlA, false, nil)

	assert.Equal(t, int64(900_000), r.WatchTimeMillis(now, 1))
	assert.Equal(t, int64(1_100_000), r.TodayMillis(now))
	assert.Equal(t, []domain.Activity{{URL: urlA, Title: "A"}}, r.RecentActivity(now))
	assert.Empty(t, r.RecentActivity(now.Add(73*time.Hour)))
}
