package main

import (
	"context"

	"github.com/hashicorp/go-plugin"

	detectorrpc "watchtime/internal/modules/filter/adapter/out/rpc"
)

type server struct{}

func (s *server) GetMetadata(_ context.Context, _ *detectorrpc.Empty) (*detectorrpc.Metadata, error) {
	return &detectorrpc.Metadata{
		Name:         "langdetect",
		Version:      "1.0.0",
		Capabilities: []string{"detect_language"},
	}, nil
}

func (s *server) DetectLanguage(_ context.Context, in *detectorrpc.DetectRequest) (*detectorrpc.DetectResponse, error) {
	language, confidence := detect(in.Text)
	return &detectorrpc.DetectResponse{Language: language, Confidence: confidence}, nil
}

func main() {
	plugin.Serve(&plugin.ServeConfig{
		HandshakeConfig: detectorrpc.HandshakeConfig,
		Plugins:         detectorrpc.PluginMap(&server{}),
		GRPCServer:      plugin.DefaultGRPCServer,
	})
}
