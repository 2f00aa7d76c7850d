package dto

import "time"

// PlaybackInput is a play-state change reported by the browser bridge.
type PlaybackInput struct {
	Title     string
	URL       string
	IsPlaying bool
	TabID     *int64
	At        time.Time
}

// TabInput is a tab lifecycle change: either navigation to URL or Closed.
type TabInput struct {
	TabID  int64
	URL    string
	Closed bool
	At     time.Time
}

type ActivityOutput struct {
	URL   string
	Title string
}

type PlayingOutput struct {
	URL   string
	Title string
	TabID *int64
}

type WatchTimeOutput struct {
	RangeHours float64
	Millis     int64
}

type StatusOutput struct {
	Name                string
	Playing             bool
	PlayingVideos       []PlayingOutput
	TodayMillis         int64
	TotalWatchedSeconds float64
	RecentActivity      []ActivityOutput
	Records             int
}

// ReportOutput is a point-in-time summary for the CLI and report notes.
type ReportOutput struct {
	GeneratedAt time.Time
	Status      StatusOutput
	RangeHours  float64
	RangeMillis int64
}
