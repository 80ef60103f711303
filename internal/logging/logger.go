package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logger configuration
type Config struct {
	Level       string `json:"level"`
	Output      string `json:"output"`       // "stdout", "stderr", or file path
	Component   string `json:"component"`
	IncludeFile bool   `json:"include_file"` // Include file and line number
	JSONFormat  bool   `json:"json_format"`  // Output as JSON
}

// ParseLevel converts a string to a zerolog level, defaulting to info
func ParseLevel(s string) zerolog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN", "WARNING":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	case "FATAL":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// New creates a logger with the given configuration. An output file that
// cannot be opened falls back to stdout.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(cfg, openOutput(cfg.Output))
}

// NewWithWriter creates a logger writing to w
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	if !cfg.JSONFormat {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	ctx := zerolog.New(w).Level(ParseLevel(cfg.Level)).With().Timestamp()
	if cfg.Component != "" {
		ctx = ctx.Str("component", cfg.Component)
	}
	if cfg.IncludeFile {
		ctx = ctx.Caller()
	}
	return ctx.Logger()
}

func openOutput(output string) io.Writer {
	switch output {
	case "", "stdout":
		return os.Stdout
	case "stderr":
		return os.Stderr
	}
	file, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return os.Stdout
	}
	return file
}

// WithComponent returns a child logger tagged with component
func WithComponent(l zerolog.Logger, component string) zerolog.Logger {
	return l.With().Str("component", component).Logger()
}
