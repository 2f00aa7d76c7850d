package in

import (
	"context"

	"watchtime/internal/modules/tracking/dto"
)

// Queries is the read side of tracking.
type Queries interface {
	RecentActivity(ctx context.Context) ([]dto.ActivityOutput, error)
	WatchTime(ctx context.Context, rangeHours float64) (dto.WatchTimeOutput, error)
	TotalWatchedSeconds(ctx context.Context) (float64, error)
	IsAnyVideoPlaying(ctx context.Context) (bool, error)
	Status(ctx context.Context) (dto.StatusOutput, error)
}

// Usecase is the tracking surface. Errors report only delivery problems
// (cancelled context, stopped loop); rejected or malformed signals are logged.
type Usecase interface {
	Queries
	ReportPlayback(ctx context.Context, input dto.PlaybackInput) error
	ReportTab(ctx context.Context, input dto.TabInput) error
}
