package domain

import (
	"fmt"
	"time"

	apperrors "watchtime/internal/platform/errors"
)

var (
	ErrIntervalClosed = fmt.Errorf("%w: interval already closed", apperrors.ErrInvalidState)
	ErrIntervalOpen   = fmt.Errorf("%w: interval already open", apperrors.ErrInvalidState)
)

// Interval is a span of watching. End is nil while the interval is open.
type Interval struct {
	Start time.Time
	End   *time.Time
}

func NewInterval(start time.Time) Interval {
	return Interval{Start: normalize(start)}
}

func (i Interval) IsOpen() bool {
	return i.End == nil
}

// Close sets the end instant. An instant before Start is clamped to Start.
func (i *Interval) Close(at time.Time) error {
	if i.End != nil {
		return ErrIntervalClosed
	}
	end := normalize(at)
	if end.Before(i.Start) {
		end = i.Start
	}
	i.End = &end
	return nil
}

// Duration is zero for open intervals and never negative.
func (i Interval) Duration() time.Duration {
	if i.End == nil {
		return 0
	}
	d := i.End.Sub(i.Start)
	if d < 0 {
		return 0
	}
	return d
}

// Inverted reports a closed interval whose end precedes its start. Only
// corrupt snapshots produce these; Duration clamps them to zero.
func (i Interval) Inverted() bool {
	return i.End != nil && i.End.Before(i.Start)
}

func normalize(t time.Time) time.Time {
	return t.UTC()
}
