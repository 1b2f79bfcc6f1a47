package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

var (
	logger  = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logFile *os.File
	mu      sync.Mutex
	isSetup bool
)

// Options configures the process-wide logger
type Options struct {
	Level   string
	File    string
	Console io.Writer
}

// ParseLevel maps a config level name to a slog level
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// SetupLogger initializes the process logger. When opts.File is set the log is
// written to both the console writer and the file.
func SetupLogger(opts Options) error {
	mu.Lock()
	defer mu.Unlock()

	if isSetup {
		return nil
	}

	level, err := ParseLevel(opts.Level)
	if err != nil {
		return err
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	out := console
	if opts.File != "" {
		logFile, err = os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		out = io.MultiWriter(console, logFile)
	}

	logger = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	logger.Debug("simbench log started", "at", time.Now().Format(time.RFC3339))

	isSetup = true
	return nil
}

// CloseLogger closes the log file and resets the logger to stderr
func CloseLogger() {
	mu.Lock()
	defer mu.Unlock()

	if logFile != nil {
		logger.Debug("simbench log closed", "at", time.Now().Format(time.RFC3339))
		logFile.Close()
		logFile = nil
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	isSetup = false
}

// Logger returns the current structured logger
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return logger
}

// LogInfo logs an information message
func LogInfo(format string, args ...interface{}) {
	Logger().Info(fmt.Sprintf(format, args...))
}

// DebugLog logs a message at debug level
func DebugLog(format string, args ...interface{}) {
	Logger().Debug(fmt.Sprintf(format, args...))
}

// LogError logs an error message
func LogError(format string, args ...interface{}) {
	Logger().Error(fmt.Sprintf(format, args...))
}

// LogWarning logs a warning message
func LogWarning(format string, args ...interface{}) {
	Logger().Warn(fmt.Sprintf(format, args...))
}

// LogImageScored logs the score of a single image
func LogImageScored(path string, similarity float64, reference bool) {
	Logger().Debug("image scored", "path", path, "similarity", similarity, "reference", reference)
}
