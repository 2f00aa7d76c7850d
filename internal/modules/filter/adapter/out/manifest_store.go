package out

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"watchtime/internal/modules/filter/domain"
	filterout "watchtime/internal/modules/filter/port/out"
)

var manifestFiles = []string{"plugins.yaml", "plugins.json"}

type manifestVersion struct {
	path    string
	modTime time.Time
	size    int64
}

// FileManifestStore reads detector manifests from plugins.yaml or
// plugins.json in pluginDir. Parsed manifests are reused until the file
// changes, since the filter consults them on every play signal.
type FileManifestStore struct {
	pluginDir string

	mu      sync.Mutex
	version manifestVersion
	cached  []domain.Manifest
}

func NewFileManifestStore(pluginDir string) filterout.ManifestStore {
	return &FileManifestStore{pluginDir: pluginDir}
}

func (s *FileManifestStore) Load(_ context.Context) ([]domain.Manifest, error) {
	version, err := s.locate()
	if err != nil {
		return nil, err
	}
	if version.path == "" {
		return []domain.Manifest{}, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cached != nil && s.version == version {
		return slices.Clone(s.cached), nil
	}
	manifests, err := s.read(version.path)
	if err != nil {
		return nil, err
	}
	s.version, s.cached = version, manifests
	return slices.Clone(manifests), nil
}

func (s *FileManifestStore) locate() (manifestVersion, error) {
	var found manifestVersion
	for _, name := range manifestFiles {
		path := filepath.Join(s.pluginDir, name)
		info, err := os.Stat(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return manifestVersion{}, fmt.Errorf("stat plugin manifests: %w", err)
		}
		if found.path != "" {
			return manifestVersion{}, fmt.Errorf("both %s and %s exist; keep one", filepath.Base(found.path), name)
		}
		found = manifestVersion{path: path, modTime: info.ModTime(), size: info.Size()}
	}
	return found, nil
}

func (s *FileManifestStore) read(path string) ([]domain.Manifest, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plugin manifests: %w", err)
	}
	manifests := []domain.Manifest{}
	if filepath.Ext(path) == ".yaml" {
		decoder := yaml.NewDecoder(bytes.NewReader(b))
		decoder.KnownFields(true)
		if err := decoder.Decode(&manifests); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
	} else {
		decoder := json.NewDecoder(bytes.NewReader(b))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&manifests); err != nil {
			return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
		}
	}
	for i := range manifests {
		if manifests[i].Binary != "" && !filepath.IsAbs(manifests[i].Binary) {
			manifests[i].Binary = filepath.Clean(filepath.Join(s.pluginDir, manifests[i].Binary))
		}
	}
	return manifests, nil
}
