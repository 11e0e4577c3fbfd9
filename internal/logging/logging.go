package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"card-parlor/internal/config"
)

var writer io.Writer = os.Stdout

// Init configures the global zerolog logger. When cfg.File is set, output
// goes to a size-capped file instead of stdout.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.Level))); err == nil && cfg.Level != "" {
		level = parsed
	}

	writer = os.Stdout
	if cfg.File != "" {
		if w, err := newCappedFileWriter(cfg.File, cfg.MaxMB); err == nil {
			writer = w
		}
	}
	output := writer
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: writer}
	}

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(output).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the sink logs are written to, for bridging other logging
// frameworks (the HTTP request logger) onto the same destination.
func Writer() io.Writer {
	return writer
}
