package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// LogConfig configures the process log backend.
type LogConfig struct {
	// LogFile is the path of the rotated log file. Empty disables file
	// logging; output still goes to stdout.
	LogFile string

	// DebugLevel is the default level for all subsystems:
	// trace|debug|info|warn|error|critical.
	DebugLevel string

	// MaxLogFiles caps how many rolled files are kept.
	MaxLogFiles int
}

// logWriter fans log output to stdout and the rotator, when one is set.
type logWriter struct {
	r *rotator.Rotator
}

func (w *logWriter) Write(p []byte) (int, error) {
	os.Stdout.Write(p)
	if w.r != nil {
		return w.r.Write(p)
	}
	return len(p), nil
}

// LogBackend hands out levelled per-subsystem loggers backed by a single
// rotated log file.
type LogBackend struct {
	backend *slog.Backend
	rotator *rotator.Rotator
	level   slog.Level
	mu      sync.Mutex
	loggers map[string]slog.Logger
}

// NewLogBackend creates the backend, creating the log directory as needed.
func NewLogBackend(cfg LogConfig) (*LogBackend, error) {
	level, ok := slog.LevelFromString(cfg.DebugLevel)
	if !ok {
		if cfg.DebugLevel != "" {
			return nil, fmt.Errorf("invalid debug level %q", cfg.DebugLevel)
		}
		level = slog.LevelInfo
	}

	w := &logWriter{}
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0700); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		maxRolls := cfg.MaxLogFiles
		if maxRolls == 0 {
			maxRolls = 3
		}
		r, err := rotator.New(cfg.LogFile, 32*1024, false, maxRolls)
		if err != nil {
			return nil, fmt.Errorf("failed to create log rotator: %w", err)
		}
		w.r = r
	}

	return &LogBackend{
		backend: slog.NewBackend(w),
		rotator: w.r,
		level:   level,
		loggers: make(map[string]slog.Logger),
	}, nil
}

// Logger returns the logger for a subsystem tag, creating it on first use.
func (b *LogBackend) Logger(subsystem string) slog.Logger {
	b.mu.Lock()
	defer b.mu.Unlock()
	if l, ok := b.loggers[subsystem]; ok {
		return l
	}
	l := b.backend.Logger(subsystem)
	l.SetLevel(b.level)
	b.loggers[subsystem] = l
	return l
}

// Close flushes and closes the rotated log file.
func (b *LogBackend) Close() error {
	if b.rotator != nil {
		return b.rotator.Close()
	}
	return nil
}
