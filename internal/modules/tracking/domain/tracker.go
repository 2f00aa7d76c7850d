package domain

import (
	"fmt"
	"strings"
	"time"

	apperrors "watchtime/internal/platform/errors"
)

// Activity is one entry of the recent-activity feed.
type Activity struct {
	URL   string
	Title string
}

// Tracker owns every Record and the global session timer. It is not safe for
// concurrent use; a single event loop owns it.
type Tracker struct {
	Name        string
	Description string

	records []*Record
	byURL   map[string]*Record
	byKey   map[string][]*Record
	timer   SessionTimer
}

func NewTracker(name, description string) *Tracker {
	return &Tracker{
		Name:        name,
		Description: description,
		byURL:       map[string]*Record{},
		byKey:       map[string][]*Record{},
	}
}

// Records returns the records in insertion order.
func (t *Tracker) Records() []*Record {
	out := make([]*Record, len(t.records))
	copy(out, t.records)
	return out
}

// StartOrResume opens an interval on the record for url, creating the record
// on first sight. A duplicate open returns the record with ErrIntervalOpen.
func (t *Tracker) StartOrResume(url, title string, at time.Time) (*Record, error) {
	if strings.TrimSpace(url) == "" {
		return nil, fmt.Errorf("%w: url is required", apperrors.ErrInvalidInput)
	}
	record, ok := t.byURL[url]
	if !ok {
		record = t.add(NewRecord(url, title))
	}
	if record.Title == "" && title != "" {
		record.Title = title
	}
	if err := record.OpenInterval(at); err != nil {
		return record, err
	}
	return record, nil
}

// Stop closes the trailing interval of the record for url and reports whether
// an interval was open.
func (t *Tracker) Stop(url string, at time.Time) (bool, error) {
	record, ok := t.byURL[url]
	if !ok {
		return false, fmt.Errorf("%w: record %s", apperrors.ErrNotFound, url)
	}
	return record.CloseInterval(at), nil
}

func (t *Tracker) FindByURL(url string) (*Record, bool) {
	record, ok := t.byURL[url]
	return record, ok
}

// FindByKey resolves a possibly shortened URL to a record. The key is
// canonicalised with VideoKey and looked up in the key index; keys that miss
// the index fall back to a substring scan over record URLs. The first match in
// insertion order is returned together with the number of matches, so a count
// above one signals an ambiguous match.
func (t *Tracker) FindByKey(key string) (*Record, int) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, 0
	}
	if canonical, ok := VideoKey(key); ok {
		if matches := t.byKey[canonical]; len(matches) > 0 {
			return matches[0], len(matches)
		}
	}
	var first *Record
	count := 0
	for _, record := range t.records {
		if strings.Contains(record.URL, key) {
			if first == nil {
				first = record
			}
			count++
		}
	}
	return first, count
}

// RecentActivity lists records active within window, in insertion order.
func (t *Tracker) RecentActivity(now time.Time, window time.Duration) []Activity {
	out := []Activity{}
	for _, record := range t.records {
		if record.RecentlyActive(now, window) {
			out = append(out, Activity{URL: record.URL, Title: record.Title})
		}
	}
	return out
}

// WatchTimeInRange sums per-record watch time over the trailing rangeHours.
func (t *Tracker) WatchTimeInRange(now time.Time, rangeHours float64) time.Duration {
	if rangeHours <= 0 {
		return 0
	}
	rangeStart := now.Add(-time.Duration(rangeHours * float64(time.Hour)))
	var total time.Duration
	for _, record := range t.records {
		total += record.WatchedSince(rangeStart)
	}
	return total
}

// TotalWatched is the union of all closed intervals across records, so
// videos playing at the same time are counted once.
func (t *Tracker) TotalWatched() time.Duration {
	spans := []Span{}
	for _, record := range t.records {
		for _, interval := range record.Intervals {
			if interval.End == nil {
				continue
			}
			spans = append(spans, Span{Start: interval.Start, End: *interval.End})
		}
	}
	return UnionDuration(spans)
}

func (t *Tracker) StartTimer(at time.Time) { t.timer.Start(at) }

func (t *Tracker) StopTimer(at time.Time) bool { return t.timer.Stop(at) }

func (t *Tracker) TimerState() TimerState { return t.timer.State() }

func (t *Tracker) Sessions() []Interval {
	out := make([]Interval, len(t.timer.Intervals))
	copy(out, t.timer.Intervals)
	return out
}

// SealOpenIntervals closes every open interval at its own start and returns
// how many were closed. A freshly started process has nothing playing, so
// intervals left open by a crash carry no provable watch time.
func (t *Tracker) SealOpenIntervals() int {
	sealed := 0
	for _, record := range t.records {
		if record.HasOpenInterval() {
			last := record.last()
			_ = last.Close(last.Start)
			sealed++
		}
	}
	if t.timer.State() == TimerRunning {
		last := &t.timer.Intervals[len(t.timer.Intervals)-1]
		_ = last.Close(last.Start)
		sealed++
	}
	return sealed
}

// InvertedIntervals counts closed intervals whose end precedes their start.
func (t *Tracker) InvertedIntervals() int {
	count := 0
	for _, record := range t.records {
		for _, interval := range record.Intervals {
			if interval.Inverted() {
				count++
			}
		}
	}
	return count
}

func (t *Tracker) add(record *Record) *Record {
	t.records = append(t.records, record)
	t.byURL[record.URL] = record
	if key, ok := VideoKey(record.URL); ok {
		t.byKey[key] = append(t.byKey[key], record)
	}
	return record
}
