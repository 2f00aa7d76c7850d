package rpc

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-plugin"
	"google.golang.org/grpc"

	"watchtime/internal/platform/jsoncodec"
)

const (
	PluginMapKey         = "detector"
	serviceName          = "watchtime.detector.v1.Detector"
	methodGetMetadata    = "/" + serviceName + "/GetMetadata"
	methodDetectLanguage = "/" + serviceName + "/DetectLanguage"
)

var HandshakeConfig = plugin.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "WATCHTIME_PLUGIN",
	MagicCookieValue: "watchtime-detector",
}

type Empty struct{}

type Metadata struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Capabilities []string `json:"capabilities"`
}

type DetectRequest struct {
	Text string `json:"text"`
}

// DetectResponse carries a BCP 47 tag; "und" when the text gives no signal.
type DetectResponse struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type DetectorServer interface {
	GetMetadata(ctx context.Context, in *Empty) (*Metadata, error)
	DetectLanguage(ctx context.Context, in *DetectRequest) (*DetectResponse, error)
}

type DetectorClient interface {
	GetMetadata(ctx context.Context) (*Metadata, error)
	DetectLanguage(ctx context.Context, in *DetectRequest) (*DetectResponse, error)
}

type detectorClient struct {
	conn *grpc.ClientConn
}

func NewDetectorClient(conn *grpc.ClientConn) DetectorClient {
	return &detectorClient{conn: conn}
}

func (c *detectorClient) GetMetadata(ctx context.Context) (*Metadata, error) {
	out := &Metadata{}
	if err := c.conn.Invoke(ctx, methodGetMetadata, &Empty{}, out, jsoncodec.CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *detectorClient) DetectLanguage(ctx context.Context, in *DetectRequest) (*DetectResponse, error) {
	out := &DetectResponse{}
	if err := c.conn.Invoke(ctx, methodDetectLanguage, in, out, jsoncodec.CallOption()); err != nil {
		return nil, err
	}
	return out, nil
}

func RegisterDetectorServer(server grpc.ServiceRegistrar, impl DetectorServer) {
	server.RegisterService(&grpc.ServiceDesc{
		ServiceName: serviceName,
		HandlerType: (*DetectorServer)(nil),
		Methods: []grpc.MethodDesc{
			{
				MethodName: "GetMetadata",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &Empty{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.GetMetadata(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetMetadata}
					handler := func(ctx context.Context, req any) (any, error) {
						empty, ok := req.(*Empty)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.GetMetadata(ctx, empty)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
			{
				MethodName: "DetectLanguage",
				Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
					in := &DetectRequest{}
					if err := dec(in); err != nil {
						return nil, err
					}
					if interceptor == nil {
						return impl.DetectLanguage(ctx, in)
					}
					info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodDetectLanguage}
					handler := func(ctx context.Context, req any) (any, error) {
						inReq, ok := req.(*DetectRequest)
						if !ok {
							return nil, fmt.Errorf("invalid request type")
						}
						return impl.DetectLanguage(ctx, inReq)
					}
					return interceptor(ctx, in, info, handler)
				},
			},
		},
		Streams:  []grpc.StreamDesc{},
		Metadata: "schemas/detector-rpc-v1.json",
	}, impl)
}

type GRPCPlugin struct {
	plugin.NetRPCUnsupportedPlugin
	Impl DetectorServer
}

func (p *GRPCPlugin) GRPCServer(_ *plugin.GRPCBroker, server *grpc.Server) error {
	RegisterDetectorServer(server, p.Impl)
	return nil
}

func (p *GRPCPlugin) GRPCClient(_ context.Context, _ *plugin.GRPCBroker, conn *grpc.ClientConn) (any, error) {
	return NewDetectorClient(conn), nil
}

func PluginMap(impl DetectorServer) map[string]plugin.Plugin {
	return map[string]plugin.Plugin{
		PluginMapKey: &GRPCPlugin{Impl: impl},
	}
}
