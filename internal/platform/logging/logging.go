// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"strings"

	hclog "github.com/hashicorp/go-hclog"

	"watchtime/internal/platform/config"
)

// New returns a root logger named after the application. Unknown levels fall back to info.
func New(cfg config.LoggingConfig, output io.Writer) hclog.Logger {
	level := hclog.LevelFromString(strings.TrimSpace(cfg.Level))
	if level == hclog.NoLevel {
		level = hclog.Info
	}
	return hclog.New(&hclog.LoggerOptions{
		Name:       "watchtime",
		Level:      level,
		Output:     output,
		JSONFormat: strings.EqualFold(cfg.Format, "json"),
	})
}
