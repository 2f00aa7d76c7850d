package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "watchtime/internal/platform/errors"
)

const SchemaVersion = 1

// Snapshot is the persisted form of a Tracker. Derived fields are written for
// readers of the raw payload and recomputed on restore.
type Snapshot struct {
	SchemaVersion       int                `json:"schemaVersion"`
	Name                string             `json:"name"`
	Description         string             `json:"description"`
	Records             []RecordSnapshot   `json:"records"`
	Sessions            []IntervalSnapshot `json:"sessions,omitempty"`
	TotalWatchedSeconds float64            `json:"totalWatchedSeconds"`
}

type RecordSnapshot struct {
	URL            string             `json:"url"`
	Title          string             `json:"title"`
	Intervals      []IntervalSnapshot `json:"intervals"`
	WatchedSeconds float64            `json:"watchedSeconds"`
}

type IntervalSnapshot struct {
	Start time.Time  `json:"start"`
	End   *time.Time `json:"end"`
}

func (t *Tracker) Snapshot() Snapshot {
	out := Snapshot{
		SchemaVersion:       SchemaVersion,
		Name:                t.Name,
		Description:         t.Description,
		Records:             make([]RecordSnapshot, 0, len(t.records)),
		Sessions:            snapshotIntervals(t.timer.Intervals),
		TotalWatchedSeconds: t.TotalWatched().Seconds(),
	}
	for _, record := range t.records {
		out.Records = append(out.Records, RecordSnapshot{
			URL:            record.URL,
			Title:          record.Title,
			Intervals:      snapshotIntervals(record.Intervals),
			WatchedSeconds: record.Watched().Seconds(),
		})
	}
	if len(out.Sessions) == 0 {
		out.Sessions = nil
	}
	return out
}

// Restore rebuilds a Tracker from a snapshot, rejecting snapshots that break
// the record invariants with ErrCorruptSnapshot.
func Restore(s Snapshot) (*Tracker, error) {
	if s.SchemaVersion > SchemaVersion {
		return nil, fmt.Errorf("%w: schema version %d is newer than %d", apperrors.ErrCorruptSnapshot, s.SchemaVersion, SchemaVersion)
	}
	t := NewTracker(s.Name, s.Description)
	for idx, rs := range s.Records {
		if strings.TrimSpace(rs.URL) == "" {
			return nil, fmt.Errorf("%w: record %d has no url", apperrors.ErrCorruptSnapshot, idx)
		}
		if _, exists := t.byURL[rs.URL]; exists {
			return nil, fmt.Errorf("%w: duplicate record %s", apperrors.ErrCorruptSnapshot, rs.URL)
		}
		intervals, err := restoreIntervals(rs.Intervals)
		if err != nil {
			return nil, fmt.Errorf("%w: record %s: %v", apperrors.ErrCorruptSnapshot, rs.URL, err)
		}
		record := NewRecord(rs.URL, rs.Title)
		record.Intervals = intervals
		t.add(record)
	}
	sessions, err := restoreIntervals(s.Sessions)
	if err != nil {
		return nil, fmt.Errorf("%w: sessions: %v", apperrors.ErrCorruptSnapshot, err)
	}
	t.timer.Intervals = sessions
	return t, nil
}

func snapshotIntervals(intervals []Interval) []IntervalSnapshot {
	out := make([]IntervalSnapshot, 0, len(intervals))
	for _, interval := range intervals {
		is := IntervalSnapshot{Start: interval.Start}
		if interval.End != nil {
			end := *interval.End
			is.End = &end
		}
		out = append(out, is)
	}
	return out
}

func restoreIntervals(in []IntervalSnapshot) ([]Interval, error) {
	out := make([]Interval, 0, len(in))
	for idx, is := range in {
		if is.Start.IsZero() {
			return nil, fmt.Errorf("interval %d has no start", idx)
		}
		if is.End == nil && idx != len(in)-1 {
			return nil, fmt.Errorf("interval %d is open but not trailing", idx)
		}
		interval := Interval{Start: normalize(is.Start)}
		if is.End != nil {
			end := normalize(*is.End)
			interval.End = &end
		}
		out = append(out, interval)
	}
	return out, nil
}
