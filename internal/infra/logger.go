package infra

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a new slog.Logger with log rotation support. Rotation
// is sized larger than a typical gateway log: a running simulation can have
// several bots re-quoting every tick across many symbols, so admission and
// trade log lines accumulate faster than the single-connection-per-venue
// volume the rotation defaults were originally tuned for.
func NewLogger(cfg *Config) *slog.Logger {
	// Create logs directory if not exists
	logDir := "logs"
	if err := os.MkdirAll(logDir, 0755); err != nil {
		// Fallback to stderr if directory creation fails
		return slog.New(slog.NewJSONHandler(os.Stderr, nil))
	}

	// Setup lumberjack logger for file rotation
	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, "simulator.log"),
		MaxSize:    40,   // Megabytes
		MaxBackups: 5,    // Number of backups
		MaxAge:     14,   // Days
		Compress:   true,
	}

	// Multi-writer: Log to both file and stdout
	writer := io.MultiWriter(os.Stdout, fileLogger)

	// Determine log level
	var level slog.Level
	switch cfg.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	logger := slog.New(slog.NewJSONHandler(writer, opts))

	appName := cfg.App.Name
	if appName == "" {
		appName = "marketsim"
	}
	return logger.With(
		slog.String("app", appName),
		slog.String("version", cfg.App.Version),
		slog.Int64("seed", cfg.Market.Seed),
	)
}
