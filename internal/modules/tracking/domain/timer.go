package domain

import "time"

type TimerState int

const (
	TimerIdle TimerState = iota
	TimerRunning
)

func (s TimerState) String() string {
	if s == TimerRunning {
		return "running"
	}
	return "idle"
}

// SessionTimer records when any video was playing, independent of which one.
type SessionTimer struct {
	Intervals []Interval
}

func (s *SessionTimer) State() TimerState {
	if n := len(s.Intervals); n > 0 && s.Intervals[n-1].IsOpen() {
		return TimerRunning
	}
	return TimerIdle
}

// Start opens a session interval. Starting a running timer closes the running
// interval at the same instant before opening the new one, so callers that do
// not track their own state never leak an open interval.
func (s *SessionTimer) Start(at time.Time) {
	if s.State() == TimerRunning {
		s.Stop(at)
	}
	s.Intervals = append(s.Intervals, NewInterval(at))
}

// Stop closes the running interval and reports whether one was running.
func (s *SessionTimer) Stop(at time.Time) bool {
	if s.State() != TimerRunning {
		return false
	}
	return s.Intervals[len(s.Intervals)-1].Close(at) == nil
}
