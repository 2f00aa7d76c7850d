package service

import (
	"errors"
	"time"

	hclog "github.com/hashicorp/go-hclog"

	"watchtime/internal/modules/tracking/domain"
	"watchtime/internal/platform/clock"
	apperrors "watchtime/internal/platform/errors"
)

// PlayingVideo is a video currently believed to be playing.
type PlayingVideo struct {
	URL   string
	Title string
	TabID *int64
}

// Reconciler turns asynchronous play, pause and tab signals into Tracker
// mutations, once per state transition. It keeps the set of playing videos
// and the tabs hosting them; neither survives a restart.
//
// Every handler reports whether tracked state changed so the owner knows when
// to snapshot. Handlers never return errors: bad input is logged and dropped.
// A Reconciler is not safe for concurrent use.
type Reconciler struct {
	tracker *domain.Tracker
	logger  hclog.Logger
	window  time.Duration
	loc     *time.Location

	playing []PlayingVideo
	tabs    map[int64]string
}

func NewReconciler(tracker *domain.Tracker, logger hclog.Logger, recentWindow time.Duration) *Reconciler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Reconciler{
		tracker: tracker,
		logger:  logger,
		window:  recentWindow,
		loc:     time.Local,
		tabs:    map[int64]string{},
	}
}

// SetLocation sets the zone used to find midnight for TodayMillis.
func (r *Reconciler) SetLocation(loc *time.Location) {
	if loc != nil {
		r.loc = loc
	}
}

func (r *Reconciler) Tracker() *domain.Tracker {
	return r.tracker
}

func (r *Reconciler) HandlePlayback(at time.Time, title, url string, isPlaying bool, tabID *int64) bool {
	if _, ok := domain.VideoKey(url); !ok {
		r.logger.Warn("dropping playback signal with malformed url", "url", url)
		return false
	}
	if tabID != nil && *tabID < 0 {
		r.logger.Warn("dropping playback signal with invalid tab", "url", url, "tab_id", *tabID)
		return false
	}
	if isPlaying {
		return r.play(at, title, url, tabID)
	}
	return r.pause(at, url, tabID)
}

func (r *Reconciler) play(at time.Time, title, url string, tabID *int64) bool {
	if r.indexOf(url) >= 0 {
		// A second tab playing the same video only adds a tab link.
		if tabID != nil {
			r.tabs[*tabID] = url
		}
		r.logger.Debug("ignoring duplicate play signal", "url", url)
		return false
	}
	if _, err := r.tracker.StartOrResume(url, title, at); err != nil {
		if !errors.Is(err, domain.ErrIntervalOpen) {
			r.logger.Warn("could not start record", "url", url, "error", err)
			return false
		}
		r.logger.Warn("record already had an open interval", "url", url)
	}
	wasIdle := len(r.playing) == 0
	r.playing = append(r.playing, PlayingVideo{URL: url, Title: title, TabID: copyTab(tabID)})
	if tabID != nil {
		r.tabs[*tabID] = url
	}
	if wasIdle {
		r.tracker.StartTimer(at)
		r.logger.Debug("global playing started", "url", url)
	}
	return true
}

func (r *Reconciler) pause(at time.Time, url string, tabID *int64) bool {
	idx := r.indexOf(url)
	if idx < 0 {
		r.logger.Debug("ignoring stray pause signal", "url", url)
		return false
	}
	video := r.playing[idx]
	r.stopAt(idx, at)
	for _, id := range []*int64{tabID, video.TabID} {
		if id != nil && r.tabs[*id] == url {
			delete(r.tabs, *id)
		}
	}
	return true
}

// HandleTabUpdated follows a tracked tab that navigated to url. The session
// of the previous URL ends unless another tab still hosts it.
func (r *Reconciler) HandleTabUpdated(at time.Time, tabID int64, url string) bool {
	newKey, ok := domain.VideoKey(url)
	if !ok || tabID < 0 {
		r.logger.Warn("dropping tab update", "tab_id", tabID, "url", url)
		return false
	}
	oldURL, tracked := r.tabs[tabID]
	if !tracked {
		r.logger.Debug("ignoring update for untracked tab", "tab_id", tabID)
		return false
	}
	r.tabs[tabID] = url
	if oldKey, _ := domain.VideoKey(oldURL); oldKey == newKey {
		return false
	}

	idx := r.indexOf(oldURL)
	if idx < 0 {
		return true
	}
	r.release(idx, tabID, at)
	return true
}

// HandleTabClosed stops the video hosted by tabID unless another tab still
// hosts it. The playing entry is found by tab or exact URL first; the
// approximate key match is the last resort because the tab may only know a
// shortened URL.
func (r *Reconciler) HandleTabClosed(at time.Time, tabID int64) bool {
	url, ok := r.tabs[tabID]
	if !ok {
		r.logger.Warn("close for unknown tab", "tab_id", tabID)
		return false
	}
	delete(r.tabs, tabID)

	if idx := r.playingFor(tabID, url); idx >= 0 {
		r.release(idx, tabID, at)
		return true
	}

	record, found := r.tracker.FindByURL(url)
	if !found {
		var matches int
		record, matches = r.tracker.FindByKey(url)
		switch {
		case matches == 0:
			r.logger.Debug("closed tab has no matching record", "tab_id", tabID, "url", url)
			return true
		case matches > 1:
			r.logger.Warn("closed tab matches several records, using first", "tab_id", tabID, "url", url, "matches", matches, "record", record.URL, "error", apperrors.ErrAmbiguousMatch)
		}
	}

	if idx := r.indexOf(record.URL); idx >= 0 {
		r.release(idx, tabID, at)
		return true
	}
	if record.CloseInterval(at) {
		r.logger.Warn("closed open interval of a video that was not playing", "url", record.URL)
	}
	return true
}

// Flush closes every playing interval at now and immediately reopens it, so
// a crash loses at most one flush period of watch time.
func (r *Reconciler) Flush(now time.Time) bool {
	if len(r.playing) == 0 {
		return false
	}
	for _, video := range r.playing {
		if _, err := r.tracker.Stop(video.URL, now); err != nil {
			r.logger.Warn("flush stop failed", "url", video.URL, "error", err)
			continue
		}
		if _, err := r.tracker.StartOrResume(video.URL, video.Title, now); err != nil {
			r.logger.Warn("flush reopen failed", "url", video.URL, "error", err)
		}
	}
	r.tracker.StartTimer(now)
	return true
}

// StopAll ends every playing session at now. Used on shutdown.
func (r *Reconciler) StopAll(now time.Time) bool {
	if len(r.playing) == 0 {
		return false
	}
	for len(r.playing) > 0 {
		r.stopAt(len(r.playing)-1, now)
	}
	r.tabs = map[int64]string{}
	return true
}

func (r *Reconciler) Playing() []PlayingVideo {
	out := make([]PlayingVideo, len(r.playing))
	copy(out, r.playing)
	return out
}

func (r *Reconciler) ActiveTabs() map[int64]string {
	out := make(map[int64]string, len(r.tabs))
	for id, url := range r.tabs {
		out[id] = url
	}
	return out
}

func (r *Reconciler) RecentActivity(now time.Time) []domain.Activity {
	return r.tracker.RecentActivity(now, r.window)
}

func (r *Reconciler) WatchTimeMillis(now time.Time, rangeHours float64) int64 {
	return r.tracker.WatchTimeInRange(now, rangeHours).Milliseconds()
}

// TodayMillis is the watch time since local midnight.
func (r *Reconciler) TodayMillis(now time.Time) int64 {
	return r.WatchTimeMillis(now, now.Sub(clock.StartOfDay(now, r.loc)).Hours())
}

func (r *Reconciler) TotalWatchedSeconds() float64 {
	return r.tracker.TotalWatched().Seconds()
}

func (r *Reconciler) IsAnyVideoPlaying() bool {
	return r.tracker.TimerState() == domain.TimerRunning
}

// stopAt closes the record of playing[idx], drops it from the playing set and
// stops the global timer once nothing is left.
func (r *Reconciler) stopAt(idx int, at time.Time) {
	video := r.playing[idx]
	if _, err := r.tracker.Stop(video.URL, at); err != nil {
		r.logger.Warn("could not stop record", "url", video.URL, "error", err)
	}
	r.playing = append(r.playing[:idx], r.playing[idx+1:]...)
	if len(r.playing) == 0 {
		r.tracker.StopTimer(at)
		r.logger.Debug("global playing stopped")
	}
}

// release detaches tabID from playing[idx]. The video keeps playing when
// another tab still hosts it and stops otherwise.
func (r *Reconciler) release(idx int, tabID int64, at time.Time) {
	video := r.playing[idx]
	if other, ok := r.otherTabFor(video.URL, tabID); ok {
		r.playing[idx].TabID = &other
		r.logger.Debug("tab released, video still hosted elsewhere", "tab_id", tabID, "url", video.URL, "other_tab_id", other)
		return
	}
	r.stopAt(idx, at)
	r.logger.Debug("tab released, session closed", "tab_id", tabID, "url", video.URL)
}

// playingFor finds the playing entry hosted by tabID for the video at url,
// or failing that the one playing exactly url.
func (r *Reconciler) playingFor(tabID int64, url string) int {
	key, _ := domain.VideoKey(url)
	for i, video := range r.playing {
		if video.TabID == nil || *video.TabID != tabID {
			continue
		}
		if videoKey, _ := domain.VideoKey(video.URL); videoKey == key {
			return i
		}
	}
	return r.indexOf(url)
}

func (r *Reconciler) indexOf(url string) int {
	for i, video := range r.playing {
		if video.URL == url {
			return i
		}
	}
	return -1
}

func (r *Reconciler) otherTabFor(url string, exclude int64) (int64, bool) {
	key, _ := domain.VideoKey(url)
	for id, tabURL := range r.tabs {
		if id == exclude {
			continue
		}
		if tabKey, _ := domain.VideoKey(tabURL); tabKey == key {
			return id, true
		}
	}
	return 0, false
}

func copyTab(tabID *int64) *int64 {
	if tabID == nil {
		return nil
	}
	v := *tabID
	return &v
}
