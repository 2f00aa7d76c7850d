package usecase

import (
	"context"

	"watchtime/internal/modules/tracking/dto"
	trackingin "watchtime/internal/modules/tracking/port/in"
	"watchtime/internal/modules/tracking/service"
	"watchtime/internal/platform/clock"
)

var _ trackingin.Queries = (*SnapshotView)(nil)

// SnapshotView answers queries from a stored snapshot without an event loop.
// It backs offline reports and is not safe for concurrent use.
type SnapshotView struct {
	reconciler *service.Reconciler
	clock      clock.Clock
}

func NewSnapshotView(reconciler *service.Reconciler, clk clock.Clock) *SnapshotView {
	return &SnapshotView{reconciler: reconciler, clock: clk}
}

func (v *SnapshotView) RecentActivity(context.Context) ([]dto.ActivityOutput, error) {
	return activityOutputs(v.reconciler, v.clock.Now()), nil
}

func (v *SnapshotView) WatchTime(_ context.Context, rangeHours float64) (dto.WatchTimeOutput, error) {
	return dto.WatchTimeOutput{RangeHours: rangeHours, Millis: v.reconciler.WatchTimeMillis(v.clock.Now(), rangeHours)}, nil
}

func (v *SnapshotView) TotalWatchedSeconds(context.Context) (float64, error) {
	return v.reconciler.TotalWatchedSeconds(), nil
}

func (v *SnapshotView) IsAnyVideoPlaying(context.Context) (bool, error) {
	return v.reconciler.IsAnyVideoPlaying(), nil
}

func (v *SnapshotView) Status(context.Context) (dto.StatusOutput, error) {
	return statusOutput(v.reconciler, v.clock.Now()), nil
}
