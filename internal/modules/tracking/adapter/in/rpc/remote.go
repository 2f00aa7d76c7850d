package rpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"watchtime/internal/modules/tracking/dto"
	trackingin "watchtime/internal/modules/tracking/port/in"
	apperrors "watchtime/internal/platform/errors"
)

var _ trackingin.Usecase = (*Remote)(nil)

// Remote is the tracking usecase of a running daemon, reached over gRPC.
type Remote struct {
	conn   *grpc.ClientConn
	client TrackerClient
}

// Dial connects lazily; the first call reports an unreachable daemon as
// apperrors.ErrNotRunning.
func Dial(addr string) (*Remote, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewRemote(conn), nil
}

func NewRemote(conn *grpc.ClientConn) *Remote {
	return &Remote{conn: conn, client: NewTrackerClient(conn)}
}

func (r *Remote) Close() error {
	return r.conn.Close()
}

func (r *Remote) ReportPlayback(ctx context.Context, input dto.PlaybackInput) error {
	return fromStatus(r.client.ReportPlayback(ctx, &PlaybackRequest{
		Title:     input.Title,
		URL:       input.URL,
		IsPlaying: input.IsPlaying,
		TabID:     input.TabID,
		AtUnixMS:  toUnixMS(input.At),
	}))
}

func (r *Remote) ReportTab(ctx context.Context, input dto.TabInput) error {
	return fromStatus(r.client.ReportTab(ctx, &TabRequest{
		TabID:    input.TabID,
		URL:      input.URL,
		Closed:   input.Closed,
		AtUnixMS: toUnixMS(input.At),
	}))
}

func (r *Remote) RecentActivity(ctx context.Context) ([]dto.ActivityOutput, error) {
	out, err := r.client.RecentActivity(ctx)
	if err != nil {
		return nil, fromStatus(err)
	}
	return fromActivities(out.Items), nil
}

func (r *Remote) WatchTime(ctx context.Context, rangeHours float64) (dto.WatchTimeOutput, error) {
	out, err := r.client.WatchTime(ctx, &WatchTimeRequest{RangeHours: rangeHours})
	if err != nil {
		return dto.WatchTimeOutput{}, fromStatus(err)
	}
	return dto.WatchTimeOutput{RangeHours: out.RangeHours, Millis: out.Millis}, nil
}

func (r *Remote) TotalWatchedSeconds(ctx context.Context) (float64, error) {
	out, err := r.Status(ctx)
	if err != nil {
		return 0, err
	}
	return out.TotalWatchedSeconds, nil
}

func (r *Remote) IsAnyVideoPlaying(ctx context.Context) (bool, error) {
	out, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return out.Playing, nil
}

func (r *Remote) Status(ctx context.Context) (dto.StatusOutput, error) {
	out, err := r.client.Status(ctx)
	if err != nil {
		return dto.StatusOutput{}, fromStatus(err)
	}
	videos := make([]dto.PlayingOutput, 0, len(out.PlayingVideos))
	for _, video := range out.PlayingVideos {
		videos = append(videos, dto.PlayingOutput{URL: video.URL, Title: video.Title, TabID: video.TabID})
	}
	return dto.StatusOutput{
		Name:                out.Name,
		Playing:             out.Playing,
		PlayingVideos:       videos,
		TodayMillis:         out.TodayMillis,
		TotalWatchedSeconds: out.TotalWatchedSeconds,
		RecentActivity:      fromActivities(out.RecentActivity),
		Records:             out.Records,
	}, nil
}

func toUnixMS(at time.Time) int64 {
	if at.IsZero() {
		return 0
	}
	return at.UnixMilli()
}

func fromActivities(items []Activity) []dto.ActivityOutput {
	out := make([]dto.ActivityOutput, 0, len(items))
	for _, item := range items {
		out = append(out, dto.ActivityOutput{URL: item.URL, Title: item.Title})
	}
	return out
}

func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}
	switch st.Code() {
	case codes.Unavailable:
		return fmt.Errorf("%w: %s", apperrors.ErrNotRunning, st.Message())
	case codes.InvalidArgument:
		return fmt.Errorf("%w: %s", apperrors.ErrInvalidInput, st.Message())
	case codes.Canceled:
		return errors.Join(context.Canceled, errors.New(st.Message()))
	case codes.DeadlineExceeded:
		return errors.Join(context.DeadlineExceeded, errors.New(st.Message()))
	default:
		return err
	}
}
