package in

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"watchtime/internal/modules/tracking/adapter/in/rpc"
	"watchtime/internal/modules/tracking/dto"
	trackingin "watchtime/internal/modules/tracking/port/in"
	apperrors "watchtime/internal/platform/errors"
)

var _ rpc.TrackerServer = (*GRPCServer)(nil)

// GRPCServer exposes the tracking usecase to the browser bridge and the CLI.
type GRPCServer struct {
	usecase trackingin.Usecase
	logger  hclog.Logger
}

func NewGRPCServer(usecase trackingin.Usecase, logger hclog.Logger) *GRPCServer {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &GRPCServer{usecase: usecase, logger: logger}
}

// Serve accepts connections on lis until ctx is cancelled, then drains
// in-flight calls.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	server := grpc.NewServer(grpc.ChainUnaryInterceptor(s.logCalls))
	rpc.RegisterTrackerServer(server, s)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Serve(lis) }()
	s.logger.Info("grpc listening", "addr", lis.Addr().String())

	select {
	case <-ctx.Done():
		server.GracefulStop()
		<-errCh
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("grpc serve: %w", err)
		}
		return nil
	}
}

func (s *GRPCServer) ReportPlayback(ctx context.Context, in *rpc.PlaybackRequest) (*rpc.Empty, error) {
	err := s.usecase.ReportPlayback(ctx, dto.PlaybackInput{
		Title:     in.Title,
		URL:       in.URL,
		IsPlaying: in.IsPlaying,
		TabID:     in.TabID,
		At:        fromUnixMS(in.AtUnixMS),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) ReportTab(ctx context.Context, in *rpc.TabRequest) (*rpc.Empty, error) {
	if !in.Closed && in.URL == "" {
		return nil, status.Error(codes.InvalidArgument, "url is required unless the tab closed")
	}
	err := s.usecase.ReportTab(ctx, dto.TabInput{
		TabID:  in.TabID,
		URL:    in.URL,
		Closed: in.Closed,
		At:     fromUnixMS(in.AtUnixMS),
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.Empty{}, nil
}

func (s *GRPCServer) RecentActivity(ctx context.Context, _ *rpc.Empty) (*rpc.RecentActivityResponse, error) {
	items, err := s.usecase.RecentActivity(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.RecentActivityResponse{Items: toActivities(items)}, nil
}

func (s *GRPCServer) WatchTime(ctx context.Context, in *rpc.WatchTimeRequest) (*rpc.WatchTimeResponse, error) {
	out, err := s.usecase.WatchTime(ctx, in.RangeHours)
	if err != nil {
		return nil, toStatus(err)
	}
	return &rpc.WatchTimeResponse{RangeHours: out.RangeHours, Millis: out.Millis}, nil
}

func (s *GRPCServer) Status(ctx context.Context, _ *rpc.Empty) (*rpc.StatusResponse, error) {
	out, err := s.usecase.Status(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	videos := make([]rpc.PlayingVideo, 0, len(out.PlayingVideos))
	for _, video := range out.PlayingVideos {
		videos = append(videos, rpc.PlayingVideo{URL: video.URL, Title: video.Title, TabID: video.TabID})
	}
	return &rpc.StatusResponse{
		Name:                out.Name,
		Playing:             out.Playing,
		PlayingVideos:       videos,
		TodayMillis:         out.TodayMillis,
		TotalWatchedSeconds: out.TotalWatchedSeconds,
		RecentActivity:      toActivities(out.RecentActivity),
		Records:             out.Records,
	}, nil
}

func (s *GRPCServer) logCalls(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	started := time.Now()
	resp, err := handler(ctx, req)
	if err != nil {
		s.logger.Warn("rpc failed", "method", info.FullMethod, "duration", time.Since(started), "error", err)
		return resp, err
	}
	s.logger.Trace("rpc handled", "method", info.FullMethod, "duration", time.Since(started))
	return resp, nil
}

func toActivities(items []dto.ActivityOutput) []rpc.Activity {
	out := make([]rpc.Activity, 0, len(items))
	for _, item := range items {
		out = append(out, rpc.Activity{URL: item.URL, Title: item.Title})
	}
	return out
}

func fromUnixMS(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, apperrors.ErrNotRunning):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, apperrors.ErrInvalidInput):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
