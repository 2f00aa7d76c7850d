package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"

	"watchtime/internal/platform/jsoncodec"
)

const (
	serviceName          = "watchtime.tracking.v1.Tracker"
	methodReportPlayback = "/" + serviceName + "/ReportPlayback"
	methodReportTab      = "/" + serviceName + "/ReportTab"
	methodRecentActivity = "/" + serviceName + "/RecentActivity"
	methodWatchTime      = "/" + serviceName + "/WatchTime"
	methodStatus         = "/" + serviceName + "/Status"
	schemaMetadata       = "schemas/tracking-rpc-v1.json"
)

type Empty struct{}

// PlaybackRequest carries a play-state change. AtUnixMS of zero means the
// daemon stamps the signal on arrival.
type PlaybackRequest struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	IsPlaying bool   `json:"is_playing"`
	TabID     *int64 `json:"tab_id,omitempty"`
	AtUnixMS  int64  `json:"at_unix_ms,omitempty"`
}

type TabRequest struct {
	TabID    int64  `json:"tab_id"`
	URL      string `json:"url,omitempty"`
	Closed   bool   `json:"closed"`
	AtUnixMS int64  `json:"at_unix_ms,omitempty"`
}

type Activity struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

type RecentActivityResponse struct {
	Items []Activity `json:"items"`
}

type WatchTimeRequest struct {
	RangeHours float64 `json:"range_hours"`
}

type WatchTimeResponse struct {
	RangeHours float64 `json:"range_hours"`
	Millis     int64   `json:"millis"`
}

type PlayingVideo struct {
	URL   string `json:"url"`
	Title string `json:"title"`
	TabID *int64 `json:"tab_id,omitempty"`
}

type StatusResponse struct {
	Name                string         `json:"name"`
	Playing             bool           `json:"playing"`
	PlayingVideos       []PlayingVideo `json:"playing_videos"`
	TodayMillis         int64          `json:"today_millis"`
	TotalWatchedSeconds float64        `json:"total_watched_seconds"`
	RecentActivity      []Activity     `json:"recent_activity"`
	Records             int            `json:"records"`
}

type TrackerServer interface {
	ReportPlayback(ctx context.Context, in *PlaybackRequest) (*Empty, error)
	ReportTab(ctx context.Context, in *TabRequest) (*Empty, error)
	RecentActivity(ctx context.Context, in *Empty) (*RecentActivityResponse, error)
	WatchTime(ctx context.Context, in *WatchTimeRequest) (*WatchTimeResponse, error)
	Status(ctx context.Context, in *Empty) (*StatusResponse, error)
}

type TrackerClient interface {
	ReportPlayback(ctx context.Context, in *PlaybackRequest) error
	ReportTab(ctx context.Context, in *TabRequest) error
	RecentActivity(ctx context.Context) (*RecentActivityResponse, error)
	WatchTime(ctx context.Context, in *WatchTimeRequest) (*WatchTimeResponse, error)
	Status(ctx context.Context) (*StatusResponse, error)
}

type trackerClient struct {
	conn grpc.ClientConnInterface
}

func NewTrackerClient(conn grpc.ClientConnInterface) TrackerClient {
	return &trackerClient{conn: conn}
}

func (c *trackerClient) ReportPlayback(ctx context.Context, in *PlaybackRequest) error {
	return c.conn.Invoke(ctx, methodReportPlayback, in, &Empty{}, jsoncodec.CallOption())
}

func (c *trackerClient) ReportTab(ctx context.Context, in *TabRequest) error {
	return c.conn.Invoke(ctx, methodReportTab, in, &Empty{}, jsoncodec.CallOption())
}

func (c *trackerClient) RecentActivity(ctx context.Context) (*RecentActivityResponse, error) {
	out := &RecentActivityResponse{}
	if err := c.conn.Invoke(ctx, methodRecentActivity, &Empty{}, out, jsoncodec.CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *trackerClient) WatchTime(ctx context.Context, in *WatchTimeRequest) (*WatchTimeResponse, error) {
	out := &WatchTimeResponse{}
	if err := c.conn.Invoke(ctx, methodWatchTime, in, out, jsoncodec.CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *trackerClient) Status(ctx context.Context) (*StatusResponse, error) {
	out := &StatusResponse{}
	if err := c.conn.Invoke(ctx, methodStatus, &Empty{}, out, jsoncodec.CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterTrackerServer(server grpc.ServiceRegistrar, impl TrackerServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*TrackerServer)(nil),
		Methods: []grpc.MethodDesc{
			unary("ReportPlayback", methodReportPlayback, impl.ReportPlayback),
			unary("ReportTab", methodReportTab, impl.ReportTab),
			unary("RecentActivity", methodRecentActivity, impl.RecentActivity),
			unary("WatchTime", methodWatchTime, impl.WatchTime),
			unary("Status", methodStatus, impl.Status),
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: schemaMetadata,
	}, impl)
}

func unary[Req, Resp any](name, fullMethod string, call func(context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				typed, ok := req.(*Req)
				if !ok {
					return nil, fmt.Errorf("invalid request type %T", req)
				}
				return call(ctx, typed)
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
