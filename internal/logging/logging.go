package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config describes one logging sink.
type Config struct {
	// Level is the minimum level written (debug, info, warn, error).
	Level string
	// FilePath is the log file; empty disables file logging.
	FilePath string
	// MaxSizeMB triggers rotation once the file exceeds this size.
	MaxSizeMB int
	// MaxFiles bounds how many rotated files are kept.
	MaxFiles int
	// WriteToStderr mirrors every record to stderr as well.
	WriteToStderr bool
}

// DefaultConfig returns the standard file-logging setup.
func DefaultConfig() Config {
	return Config{
		Level:         "info",
		FilePath:      DefaultLogPath(),
		MaxSizeMB:     10,
		MaxFiles:      5,
		WriteToStderr: true,
	}
}

// DebugConfig is DefaultConfig at debug level.
func DebugConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = "debug"
	return cfg
}

// Setup initializes JSON file logging with rotation and returns the
// logger plus a cleanup function that flushes and closes the file.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	if cfg.FilePath == "" {
		var sink io.Writer = io.Discard
		if cfg.WriteToStderr {
			sink = os.Stderr
		}
		handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{Level: parseLevel(cfg.Level)})
		return slog.New(handler), func() {}, nil
	}

	if err := EnsureLogDir(); err != nil {
		return nil, nil, err
	}

	writer, err := NewRotatingWriter(cfg.FilePath, cfg.MaxSizeMB, cfg.MaxFiles)
	if err != nil {
		return nil, nil, err
	}

	var sink io.Writer = writer
	if cfg.WriteToStderr {
		sink = io.MultiWriter(writer, os.Stderr)
	}

	handler := slog.NewJSONHandler(sink, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})

	cleanup := func() {
		_ = writer.Sync()
		_ = writer.Close()
	}
	return slog.New(handler), cleanup, nil
}

// SetupDefault installs a debug-level file logger as the process default
// and returns its cleanup function.
func SetupDefault() (func(), error) {
	logger, cleanup, err := Setup(DebugConfig())
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return cleanup, nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LevelFromString maps a level name to slog.Level, defaulting to info.
// Exported for the log viewer's level filter.
func LevelFromString(level string) slog.Level {
	return parseLevel(level)
}
