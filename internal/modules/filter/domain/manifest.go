package domain

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
)

type Capability string

const CapabilityDetectLanguage Capability = "detect_language"

var (
	ErrPluginDisabled    = errors.New("plugin is disabled")
	ErrChecksumMismatch  = errors.New("plugin checksum mismatch")
	ErrCapabilityMissing = errors.New("plugin capability missing")
	ErrPluginTimeout     = errors.New("plugin timeout")
	ErrNoDetector        = errors.New("no language detector configured")
)

var sha256Pattern = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Manifest describes an out-of-process detector plugin.
type Manifest struct {
	Name         string       `json:"name" yaml:"name"`
	Version      string       `json:"version" yaml:"version"`
	Binary       string       `json:"binary" yaml:"binary"`
	SHA256       string       `json:"sha256" yaml:"sha256"`
	Enabled      bool         `json:"enabled" yaml:"enabled"`
	Capabilities []Capability `json:"capabilities" yaml:"capabilities"`
}

func (m Manifest) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("plugin name is required")
	}
	if m.Version == "" {
		return fmt.Errorf("plugin version is required")
	}
	if m.Binary == "" {
		return fmt.Errorf("plugin binary path is required")
	}
	if !sha256Pattern.MatchString(m.SHA256) {
		return fmt.Errorf("plugin sha256 must be lowercase 64-char hex")
	}
	if len(m.Capabilities) == 0 {
		return fmt.Errorf("plugin capabilities are required")
	}
	seen := map[Capability]struct{}{}
	for _, capability := range m.Capabilities {
		if capability != CapabilityDetectLanguage {
			return fmt.Errorf("unknown capability: %s", capability)
		}
		if _, ok := seen[capability]; ok {
			return fmt.Errorf("duplicate capability: %s", capability)
		}
		seen[capability] = struct{}{}
	}
	return nil
}

func (m Manifest) HasCapability(capability Capability) bool {
	return slices.Contains(m.Capabilities, capability)
}

type Metadata struct {
	Name         string
	Version      string
	Capabilities []Capability
}

// Detection is a detector's guess at the language of a text.
type Detection struct {
	Language   string
	Confidence float64
}
