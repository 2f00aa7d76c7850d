package domain

import "time"

// Record is the watch history of one video, keyed by URL.
type Record struct {
	URL       string
	Title     string
	Intervals []Interval
}

func NewRecord(url, title string) *Record {
	return &Record{URL: url, Title: title}
}

// OpenInterval starts a new interval at the given instant. While the trailing
// interval is still open it returns ErrIntervalOpen and changes nothing.
func (r *Record) OpenInterval(at time.Time) error {
	if r.HasOpenInterval() {
		return ErrIntervalOpen
	}
	r.Intervals = append(r.Intervals, NewInterval(at))
	return nil
}

// CloseInterval closes the trailing interval and reports whether one was open.
func (r *Record) CloseInterval(at time.Time) bool {
	last := r.last()
	if last == nil || !last.IsOpen() {
		return false
	}
	return last.Close(at) == nil
}

func (r *Record) HasOpenInterval() bool {
	last := r.last()
	return last != nil && last.IsOpen()
}

// Watched sums the closed intervals.
func (r *Record) Watched() time.Duration {
	var total time.Duration
	for _, interval := range r.Intervals {
		total += interval.Duration()
	}
	return total
}

// LastActivity is the end of the trailing interval, or its start while open.
func (r *Record) LastActivity() (time.Time, bool) {
	last := r.last()
	if last == nil {
		return time.Time{}, false
	}
	if last.End != nil {
		return *last.End, true
	}
	return last.Start, true
}

func (r *Record) RecentlyActive(now time.Time, window time.Duration) bool {
	ts, ok := r.LastActivity()
	if !ok {
		return false
	}
	return ts.After(now.Add(-window))
}

// WatchedSince sums intervals that started at or after rangeStart. Intervals
// straddling rangeStart are not clipped.
func (r *Record) WatchedSince(rangeStart time.Time) time.Duration {
	var total time.Duration
	for _, interval := range r.Intervals {
		if interval.Start.Before(rangeStart) {
			continue
		}
		total += interval.Duration()
	}
	return total
}

func (r *Record) last() *Interval {
	if len(r.Intervals) == 0 {
		return nil
	}
	return &r.Intervals[len(r.Intervals)-1]
}
