package service_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"watchtime/internal/modules/filter/domain"
	"watchtime/internal/modules/filter/dto"
	"watchtime/internal/modules/filter/service"
)

type staticStore struct {
	manifests []domain.Manifest
	err       error
}

func (s staticStore) Load(context.Context) ([]domain.Manifest, error) {
	return s.manifests, s.err
}

type fakeHost struct {
	mu        sync.Mutex
	language  string
	detectErr error
	lifeErr   error
	detects   int
}

func (h *fakeHost) CheckLifecycle(context.Context, domain.Manifest) error {
	return h.lifeErr
}

func (h *fakeHost) GetMetadata(_ context.Context, m domain.Manifest) (domain.Metadata, error) {
	return domain.Metadata{Name: m.Name, Version: m.Version, Capabilities: m.Capabilities}, nil
}

func (h *fakeHost) DetectLanguage(context.Context, domain.Manifest, string) (domain.Detection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.detects++
	if h.detectErr != nil {
		return domain.Detection{}, h.detectErr
	}
	return domain.Detection{Language: h.language, Confidence: 0.9}, nil
}

func writeBinary(t *testing.T, content string) (string, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "langdetect")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	sum := sha256.Sum256([]byte(content))
	return path, hex.EncodeToString(sum[:])
}

func detectorManifest(t *testing.T) domain.Manifest {
	t.Helper()
	path, sum := writeBinary(t, "detector")
	return domain.Manifest{
		Name:         "langdetect",
		Version:      "1.0.0",
		Binary:       path,
		SHA256:       sum,
		Enabled:      true,
		Capabilities: []domain.Capability{domain.CapabilityDetectLanguage},
	}
}

func languageOptions() domain.Options {
	return domain.Options{
		PrefLangEnabled: true,
		TargetLanguage:  "ja",
		DomainsToTrack:  map[string]bool{"youtube.com": true},
	}
}

const videoURL = "https://www.youtube.com/watch?v=aaaa1111"

func TestCheckStaticRules(t *testing.T) {
	t.Parallel()
	opts := languageOptions()
	opts.PrefLangEnabled = false
	svc := service.NewFilterService(opts, staticStore{}, nil, nil)

	out, err := svc.Check(context.Background(), dto.CheckInput{Title: "A", URL: videoURL})
	require.NoError(t, err)
	assert.True(t, out.Allowed)

	out, err = svc.Check(context.Background(), dto.CheckInput{Title: "A", URL: "https://vimeo.com/1"})
	require.NoError(t, err)
	assert.False(t, out.Allowed)
	assert.Contains(t, out.Reason, "vimeo.com")
}

func TestCheckMatchesTargetLanguage(t *testing.T) {
	t.Parallel()
	host := &fakeHost{language: "ja-JP"}
	svc := service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{detectorManifest(t)}}, host, nil)

	out, err := svc.Check(context.Background(), dto.CheckInput{Title: "日本語の動画", URL: videoURL})
	require.NoError(t, err)
	assert.True(t, out.Allowed)
	assert.Equal(t, "ja-JP", out.DetectedLanguage)

	host.language = "en"
	out, err = svc.Check(context.Background(), dto.CheckInput{Title: "English video", URL: videoURL})
	require.NoError(t, err)
	assert.False(t, out.Allowed)
	assert.Equal(t, "language en does not match ja", out.Reason)
}

func TestCheckAcceptsUndeterminedLanguage(t *testing.T) {
	t.Parallel()
	host := &fakeHost{language: "und"}
	svc := service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{detectorManifest(t)}}, host, nil)

	out, err := svc.Check(context.Background(), dto.CheckInput{Title: "12345", URL: videoURL})
	require.NoError(t, err)
	assert.True(t, out.Allowed)
}

func TestCheckFailsOpen(t *testing.T) {
	t.Parallel()
	broken := detectorManifest(t)
	broken.SHA256 = strings.Repeat("0", 64)

	cases := map[string]*service.FilterService{
		"no host":        service.NewFilterService(languageOptions(), staticStore{}, nil, nil),
		"no manifest":    service.NewFilterService(languageOptions(), staticStore{}, &fakeHost{language: "en"}, nil),
		"store error":    service.NewFilterService(languageOptions(), staticStore{err: errors.New("unreadable")}, &fakeHost{language: "en"}, nil),
		"bad checksum":   service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{broken}}, &fakeHost{language: "en"}, nil),
		"plugin crashed": service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{detectorManifest(t)}}, &fakeHost{detectErr: errors.New("eof")}, nil),
	}
	for name, svc := range cases {
		out, err := svc.Check(context.Background(), dto.CheckInput{Title: "English video", URL: videoURL})
		require.NoError(t, err, name)
		assert.True(t, out.Allowed, name)
		assert.Equal(t, "language detection unavailable", out.Reason, name)
	}
}

func TestCheckReturnsContextErrors(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	host := &fakeHost{detectErr: context.Canceled}
	svc := service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{detectorManifest(t)}}, host, nil)

	_, err := svc.Check(ctx, dto.CheckInput{Title: "English video", URL: videoURL})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDisabledDetectorIsSkipped(t *testing.T) {
	t.Parallel()
	manifest := detectorManifest(t)
	manifest.Enabled = false
	host := &fakeHost{language: "en"}
	svc := service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{manifest}}, host, nil)

	out, err := svc.Check(context.Background(), dto.CheckInput{Title: "English video", URL: videoURL})
	require.NoError(t, err)
	assert.True(t, out.Allowed)
	assert.Zero(t, host.detects)
}

func TestDoctor(t *testing.T) {
	t.Parallel()
	good := detectorManifest(t)
	mismatch := detectorManifest(t)
	mismatch.Name = "mismatch"
	mismatch.SHA256 = strings.Repeat("0", 64)
	missing := detectorManifest(t)
	missing.Name = "missing"
	missing.Binary = filepath.Join(t.TempDir(), "nope")
	invalid := domain.Manifest{Name: "invalid"}

	svc := service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{good, mismatch, missing, invalid}}, &fakeHost{}, nil)
	results, err := svc.Doctor(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 4)

	assert.Equal(t, dto.DoctorResult{Name: "langdetect", ChecksumValid: true, BinaryReachable: true, LifecycleOK: true}, results[0])
	assert.True(t, results[1].BinaryReachable)
	assert.False(t, results[1].ChecksumValid)
	assert.Equal(t, "checksum mismatch", results[1].Error)
	assert.False(t, results[2].BinaryReachable)
	assert.Contains(t, results[2].Error, "binary does not exist")
	assert.NotEmpty(t, results[3].Error)
}

func TestList(t *testing.T) {
	t.Parallel()
	manifest := detectorManifest(t)
	svc := service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{manifest}}, nil, nil)
	plugins, err := svc.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []dto.PluginInfo{{
		Name:         "langdetect",
		Version:      "1.0.0",
		Enabled:      true,
		Binary:       manifest.Binary,
		Capabilities: []string{"detect_language"},
	}}, plugins)

	dup := service.NewFilterService(languageOptions(), staticStore{manifests: []domain.Manifest{manifest, manifest}}, nil, nil)
	_, err = dup.List(context.Background())
	assert.Error(t, err)
}
