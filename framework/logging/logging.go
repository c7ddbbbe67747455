// Package logging builds the application's zap loggers and exposes them as
// types the builder can construct from instructions.
package logging

import (
	"errors"
	"fmt"

	"github.com/spf13/cast"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/km-arc/go-builder/framework/builder"
)

// New builds a process logger. format is "console" or "json"; level is any
// zap level name ("debug", "info", ...). An empty level means info.
//
//	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
func New(level, format string) (*zap.Logger, error) {
	var cfg zap.Config
	switch format {
	case "console":
		cfg = zap.NewDevelopmentConfig()
	case "json", "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}

	if level == "" {
		level = "info"
	}
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	cfg.Level = lvl
	return cfg.Build()
}

// ── FileLogger ────────────────────────────────────────────────────────────────

// FileLogger writes JSON lines to one file.
//
// Clones share the file and the level but carry their own name, so a cached
// FileLogger handed out by copy can be renamed without touching the original.
type FileLogger struct {
	path  string
	level zap.AtomicLevel
	log   *zap.Logger
}

// NewFileLogger opens (or creates) path for appending.
func NewFileLogger(path string) (*FileLogger, error) {
	if path == "" {
		return nil, errors.New("logging: file logger needs a path")
	}
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)

	cfg := zap.NewProductionConfig()
	cfg.Level = level
	cfg.Sampling = nil
	cfg.OutputPaths = []string{path}
	cfg.ErrorOutputPaths = []string{"stderr"}

	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: open %s: %w", path, err)
	}
	return &FileLogger{path: path, level: level, log: log}, nil
}

func (l *FileLogger) Path() string { return l.path }

// Logger returns the underlying zap logger.
func (l *FileLogger) Logger() *zap.Logger { return l.log }

// Named appends a segment to the logger name.
func (l *FileLogger) Named(name string) {
	l.log = l.log.Named(name)
}

// SetLevel changes the minimum level. It applies to every clone.
func (l *FileLogger) SetLevel(level string) error {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	l.level.SetLevel(lvl)
	return nil
}

func (l *FileLogger) Level() string { return l.level.String() }

func (l *FileLogger) Debug(msg string, fields ...zap.Field) { l.log.Debug(msg, fields...) }
func (l *FileLogger) Info(msg string, fields ...zap.Field)  { l.log.Info(msg, fields...) }
func (l *FileLogger) Warn(msg string, fields ...zap.Field)  { l.log.Warn(msg, fields...) }
func (l *FileLogger) Error(msg string, fields ...zap.Field) { l.log.Error(msg, fields...) }

// Sync flushes buffered entries to the file.
func (l *FileLogger) Sync() error { return l.log.Sync() }

func (l *FileLogger) Clone() any {
	cp := *l
	return &cp
}

// ── Types ─────────────────────────────────────────────────────────────────────

// Types returns the construction recipes for the logging types:
//
//	Logger:     construct [level, format]   → *zap.Logger
//	FileLogger: construct [path]            → *FileLogger
//	            property  level
//	            method    named, setLevel
func Types() map[string]*builder.Type {
	return map[string]*builder.Type{
		"Logger": builder.TypeOf(New),
		"FileLogger": builder.TypeOf(NewFileLogger).
			Property("level", func(obj, value any) error {
				level, err := cast.ToStringE(value)
				if err != nil {
					return err
				}
				return obj.(*FileLogger).SetLevel(level)
			}),
	}
}
