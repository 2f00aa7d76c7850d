package out

import (
	"context"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	hclog "github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-plugin"

	detectorrpc "watchtime/internal/modules/filter/adapter/out/rpc"
	"watchtime/internal/modules/filter/domain"
	filterout "watchtime/internal/modules/filter/port/out"
)

const (
	defaultStartTimeout = 3 * time.Second
	defaultCallTimeout  = 2 * time.Second
)

var _ filterout.Host = (*GRPCHost)(nil)

type runningPlugin struct {
	client   *plugin.Client
	detector detectorrpc.DetectorClient
}

// GRPCHost runs detector plugins through go-plugin. Detection keeps one
// process per manifest alive between calls; lifecycle checks use a throwaway
// process.
type GRPCHost struct {
	logger hclog.Logger

	mu      sync.Mutex
	running map[string]*runningPlugin
}

func NewGRPCHost(logger hclog.Logger) *GRPCHost {
	if logger == nil {
		logger = hclog.New(&hclog.LoggerOptions{Output: io.Discard, Level: hclog.NoLevel})
	}
	return &GRPCHost{logger: logger, running: map[string]*runningPlugin{}}
}

func (h *GRPCHost) CheckLifecycle(ctx context.Context, manifest domain.Manifest) error {
	p, err := h.start(manifest)
	if err != nil {
		return err
	}
	defer p.client.Kill()

	callCtx, cancel := h.callContext(ctx, defaultCallTimeout)
	defer cancel()
	if _, err := p.detector.GetMetadata(callCtx); err != nil {
		return fmt.Errorf("get metadata: %w", err)
	}
	return nil
}

func (h *GRPCHost) GetMetadata(ctx context.Context, manifest domain.Manifest) (domain.Metadata, error) {
	p, err := h.shared(manifest)
	if err != nil {
		return domain.Metadata{}, err
	}
	callCtx, cancel := h.callContext(ctx, defaultCallTimeout)
	defer cancel()

	meta, err := p.detector.GetMetadata(callCtx)
	if err != nil {
		h.drop(manifest, p)
		return domain.Metadata{}, fmt.Errorf("get metadata: %w", err)
	}
	capabilities := make([]domain.Capability, 0, len(meta.Capabilities))
	for _, capability := range meta.Capabilities {
		capabilities = append(capabilities, domain.Capability(capability))
	}
	return domain.Metadata{Name: meta.Name, Version: meta.Version, Capabilities: capabilities}, nil
}

func (h *GRPCHost) DetectLanguage(ctx context.Context, manifest domain.Manifest, text string) (domain.Detection, error) {
	p, err := h.shared(manifest)
	if err != nil {
		return domain.Detection{}, err
	}
	callCtx, cancel := h.callContext(ctx, defaultCallTimeout)
	defer cancel()

	response, err := p.detector.DetectLanguage(callCtx, &detectorrpc.DetectRequest{Text: text})
	if err != nil {
		h.drop(manifest, p)
		if callCtx.Err() == context.DeadlineExceeded {
			return domain.Detection{}, fmt.Errorf("%w: %s", domain.ErrPluginTimeout, manifest.Name)
		}
		return domain.Detection{}, fmt.Errorf("detect language: %w", err)
	}
	return domain.Detection{Language: response.Language, Confidence: response.Confidence}, nil
}

// Close stops every plugin process started for detection.
func (h *GRPCHost) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key, p := range h.running {
		p.client.Kill()
		delete(h.running, key)
	}
}

func (h *GRPCHost) shared(manifest domain.Manifest) (*runningPlugin, error) {
	key := manifestKey(manifest)
	h.mu.Lock()
	defer h.mu.Unlock()
	if p, ok := h.running[key]; ok && !p.client.Exited() {
		return p, nil
	}
	p, err := h.start(manifest)
	if err != nil {
		return nil, err
	}
	h.running[key] = p
	h.logger.Debug("detector plugin started", "name", manifest.Name, "version", manifest.Version)
	return p, nil
}

func (h *GRPCHost) drop(manifest domain.Manifest, p *runningPlugin) {
	key := manifestKey(manifest)
	h.mu.Lock()
	defer h.mu.Unlock()
	if current, ok := h.running[key]; ok && current == p {
		delete(h.running, key)
	}
	p.client.Kill()
}

func (h *GRPCHost) start(manifest domain.Manifest) (*runningPlugin, error) {
	client := plugin.NewClient(&plugin.ClientConfig{
		HandshakeConfig:  detectorrpc.HandshakeConfig,
		AllowedProtocols: []plugin.Protocol{plugin.ProtocolGRPC},
		Plugins:          detectorrpc.PluginMap(nil),
		Cmd:              exec.Command(manifest.Binary),
		Managed:          true,
		StartTimeout:     defaultStartTimeout,
		Logger:           h.logger.Named(manifest.Name),
	})

	rpcClient, err := client.Client()
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("start plugin client: %w", err)
	}
	raw, err := rpcClient.Dispense(detectorrpc.PluginMapKey)
	if err != nil {
		client.Kill()
		return nil, fmt.Errorf("dispense plugin: %w", err)
	}
	typed, ok := raw.(detectorrpc.DetectorClient)
	if !ok {
		client.Kill()
		return nil, fmt.Errorf("plugin rpc client type mismatch")
	}
	return &runningPlugin{client: client, detector: typed}, nil
}

func (h *GRPCHost) callContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := parent.Deadline(); ok {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}

func manifestKey(m domain.Manifest) string {
	return m.Binary + "@" + m.SHA256
}
