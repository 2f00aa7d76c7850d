package out_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	filterout "watchtime/internal/modules/filter/adapter/out"
	"watchtime/internal/modules/filter/domain"
)

func TestFileManifestStoreLoadMissingReturnsEmpty(t *testing.T) {
	t.Parallel()
	store := filterout.NewFileManifestStore(t.TempDir())
	manifests, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 0 {
		t.Fatalf("expected empty manifests, got %d", len(manifests))
	}
}

func TestFileManifestStoreResolvesRelativeBinary(t *testing.T) {
	t.Parallel()
	pluginDir := t.TempDir()
	raw := `[
  {
    "name": "langdetect",
    "version": "1.0.0",
    "binary": "langdetect/langdetect-plugin",
    "sha256": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
    "enabled": true,
    "capabilities": ["detect_language"]
  }
]`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugins.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write plugins.json: %v", err)
	}
	manifests, err := filterout.NewFileManifestStore(pluginDir).Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 1 {
		t.Fatalf("expected one manifest, got %d", len(manifests))
	}
	want := filepath.Join(pluginDir, "langdetect", "langdetect-plugin")
	if manifests[0].Binary != want {
		t.Fatalf("expected binary %s, got %s", want, manifests[0].Binary)
	}
	if !manifests[0].HasCapability(domain.CapabilityDetectLanguage) {
		t.Fatalf("expected detect_language capability")
	}
}

func TestFileManifestStoreRejectsUnknownField(t *testing.T) {
	t.Parallel()
	pluginDir := t.TempDir()
	raw := `[{"name": "langdetect", "version": "1.0.0", "binary": "/tmp/x", "unknown_field": true}]`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugins.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write plugins.json: %v", err)
	}
	if _, err := filterout.NewFileManifestStore(pluginDir).Load(context.Background()); err == nil {
		t.Fatalf("expected unknown field error")
	}
}

func TestFileManifestStoreReadsYAML(t *testing.T) {
	t.Parallel()
	pluginDir := t.TempDir()
	raw := `- name: langdetect
  version: 1.0.0
  binary: langdetect
  sha256: aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa
  enabled: true
  capabilities: [detect_language]
`
	if err := os.WriteFile(filepath.Join(pluginDir, "plugins.yaml"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write plugins.yaml: %v", err)
	}
	manifests, err := filterout.NewFileManifestStore(pluginDir).Load(context.Background())
	if err != nil {
		t.Fatalf("load manifests: %v", err)
	}
	if len(manifests) != 1 || manifests[0].Binary != filepath.Join(pluginDir, "langdetect") {
		t.Fatalf("unexpected manifests %+v", manifests)
	}
	if err := manifests[0].Validate(); err != nil {
		t.Fatalf("yaml manifest should validate: %v", err)
	}
}

func TestFileManifestStoreRejectsBothFormats(t *testing.T) {
	t.Parallel()
	pluginDir := t.TempDir()
	for _, name := range []string{"plugins.yaml", "plugins.json"} {
		if err := os.WriteFile(filepath.Join(pluginDir, name), []byte("[]"), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	if _, err := filterout.NewFileManifestStore(pluginDir).Load(context.Background()); err == nil {
		t.Fatalf("expected an error when both manifest files exist")
	}
}

func TestFileManifestStoreReloadsChangedFile(t *testing.T) {
	t.Parallel()
	pluginDir := t.TempDir()
	path := filepath.Join(pluginDir, "plugins.json")
	if err := os.WriteFile(path, []byte("[]"), 0o644); err != nil {
		t.Fatalf("write plugins.json: %v", err)
	}
	store := filterout.NewFileManifestStore(pluginDir)
	manifests, err := store.Load(context.Background())
	if err != nil || len(manifests) != 0 {
		t.Fatalf("first load: %v %v", manifests, err)
	}

	raw := `[{"name": "langdetect", "version": "1.0.0", "binary": "/opt/langdetect", "sha256": "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa", "enabled": false, "capabilities": ["detect_language"]}]`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatalf("rewrite plugins.json: %v", err)
	}
	manifests, err = store.Load(context.Background())
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if len(manifests) != 1 || manifests[0].Name != "langdetect" {
		t.Fatalf("changed file was not reloaded: %+v", manifests)
	}
}
