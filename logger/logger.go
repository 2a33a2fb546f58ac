// Package logger builds the process logger.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds logger configuration
type Config struct {
	// Level is one of debug, info, warn, error. Empty means info.
	Level string
	// File, when set, receives a copy of every line and is rotated.
	File string
	// JSON switches to one JSON object per line.
	JSON bool
	// Output defaults to stderr.
	Output io.Writer
}

// New returns a configured logger. The returned closer releases the log
// file and is never nil.
func New(cfg Config) (*log.Logger, io.Closer, error) {
	level := log.InfoLevel
	if cfg.Level != "" {
		l, err := log.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, nil, err
		}
		level = l
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, nil, err
		}
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
			Compress:   true,
		}
		out = io.MultiWriter(out, fileWriter)
		closer = fileWriter
	}

	opts := log.Options{
		ReportTimestamp: true,
		ReportCaller:    level == log.DebugLevel,
		Level:           level,
		Prefix:          "hours-ledger",
	}
	if cfg.JSON {
		opts.Formatter = log.JSONFormatter
	}

	return log.NewWithOptions(out, opts), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
