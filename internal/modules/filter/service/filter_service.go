package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	hclog "github.com/hashicorp/go-hclog"

	"watchtime/internal/modules/filter/domain"
	"watchtime/internal/modules/filter/dto"
	filterout "watchtime/internal/modules/filter/port/out"
)

type FilterService struct {
	options domain.Options
	store   filterout.ManifestStore
	host    filterout.Host
	logger  hclog.Logger

	mu       sync.Mutex
	verified map[string]bool
}

// NewFilterService builds the filter. host may be nil, which disables
// language detection.
func NewFilterService(options domain.Options, store filterout.ManifestStore, host filterout.Host, logger hclog.Logger) *FilterService {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &FilterService{
		options:  options,
		store:    store,
		host:     host,
		logger:   logger,
		verified: map[string]bool{},
	}
}

// Check decides whether a playing video is tracked. Detector problems fail
// open: the video is tracked and the problem is logged.
func (s *FilterService) Check(ctx context.Context, input dto.CheckInput) (dto.DecisionOutput, error) {
	verdict, reason := s.options.Evaluate(input.Title, input.URL)
	switch verdict {
	case domain.VerdictReject:
		return dto.DecisionOutput{Allowed: false, Reason: reason}, nil
	case domain.VerdictAccept:
		return dto.DecisionOutput{Allowed: true, Reason: reason}, nil
	}

	detection, err := s.detect(ctx, input.Title)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return dto.DecisionOutput{}, ctxErr
		}
		s.logger.Warn("language detection unavailable, tracking anyway", "url", input.URL, "error", err)
		return dto.DecisionOutput{Allowed: true, Reason: "language detection unavailable"}, nil
	}
	if detection.Language == "" || detection.Language == "und" {
		return dto.DecisionOutput{Allowed: true, Reason: "language undetermined", DetectedLanguage: detection.Language}, nil
	}
	if !domain.SameLanguage(detection.Language, s.options.TargetLanguage) {
		return dto.DecisionOutput{
			Allowed:          false,
			Reason:           fmt.Sprintf("language %s does not match %s", detection.Language, s.options.TargetLanguage),
			DetectedLanguage: detection.Language,
		}, nil
	}
	return dto.DecisionOutput{Allowed: true, Reason: "target language " + detection.Language, DetectedLanguage: detection.Language}, nil
}

func (s *FilterService) List(ctx context.Context) ([]dto.PluginInfo, error) {
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.PluginInfo, 0, len(manifests))
	for _, m := range manifests {
		caps := make([]string, 0, len(m.Capabilities))
		for _, c := range m.Capabilities {
			caps = append(caps, string(c))
		}
		out = append(out, dto.PluginInfo{Name: m.Name, Version: m.Version, Enabled: m.Enabled, Binary: m.Binary, Capabilities: caps})
	}
	return out, nil
}

func (s *FilterService) Doctor(ctx context.Context) ([]dto.DoctorResult, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	results := make([]dto.DoctorResult, 0, len(manifests))
	for _, m := range manifests {
		result := dto.DoctorResult{Name: m.Name}
		if err := m.Validate(); err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		result.BinaryReachable = fileExists(m.Binary)
		if !result.BinaryReachable {
			result.Error = fmt.Sprintf("binary does not exist: %s", m.Binary)
			results = append(results, result)
			continue
		}
		result.ChecksumValid = checksumMatches(m.Binary, m.SHA256) == nil
		if !result.ChecksumValid {
			result.Error = "checksum mismatch"
			results = append(results, result)
			continue
		}
		if m.Enabled && s.host != nil {
			if err := s.host.CheckLifecycle(ctx, m); err != nil {
				result.Error = err.Error()
			} else {
				result.LifecycleOK = true
			}
		}
		results = append(results, result)
	}
	return results, nil
}

func (s *FilterService) detect(ctx context.Context, text string) (domain.Detection, error) {
	manifest, err := s.detector(ctx)
	if err != nil {
		return domain.Detection{}, err
	}
	detection, err := s.host.DetectLanguage(ctx, manifest, text)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Detection{}, fmt.Errorf("%w: %s", domain.ErrPluginTimeout, manifest.Name)
		}
		return domain.Detection{}, err
	}
	return detection, nil
}

// detector returns the first enabled manifest able to detect languages. Its
// binary checksum is verified once per process.
func (s *FilterService) detector(ctx context.Context) (domain.Manifest, error) {
	if s.host == nil {
		return domain.Manifest{}, domain.ErrNoDetector
	}
	manifests, err := s.loadValidated(ctx)
	if err != nil {
		return domain.Manifest{}, err
	}
	for _, m := range manifests {
		if !m.Enabled || !m.HasCapability(domain.CapabilityDetectLanguage) {
			continue
		}
		if err := s.verify(m); err != nil {
			return domain.Manifest{}, err
		}
		return m, nil
	}
	return domain.Manifest{}, domain.ErrNoDetector
}

func (s *FilterService) verify(m domain.Manifest) error {
	key := m.Binary + "@" + m.SHA256
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verified[key] {
		return nil
	}
	if err := checksumMatches(m.Binary, m.SHA256); err != nil {
		return err
	}
	s.verified[key] = true
	return nil
}

func (s *FilterService) loadValidated(ctx context.Context) ([]domain.Manifest, error) {
	manifests, err := s.store.Load(ctx)
	if err != nil {
		return nil, err
	}
	seenNames := map[string]struct{}{}
	for _, manifest := range manifests {
		if err := manifest.Validate(); err != nil {
			return nil, err
		}
		if _, ok := seenNames[manifest.Name]; ok {
			return nil, fmt.Errorf("duplicate plugin name: %s", manifest.Name)
		}
		seenNames[manifest.Name] = struct{}{}
	}
	return manifests, nil
}

func checksumMatches(path string, expected string) error {
	payload, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plugin binary: %w", err)
	}
	hash := sha256.Sum256(payload)
	if hex.EncodeToString(hash[:]) != expected {
		return fmt.Errorf("%w: %s", domain.ErrChecksumMismatch, filepath.Base(path))
	}
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
