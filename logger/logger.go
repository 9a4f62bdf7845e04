package logger

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Logger represents a structured logger
type Logger struct {
	logger zerolog.Logger
}

// Fields represents log fields
type Fields map[string]interface{}

var (
	// Default is the default logger instance
	Default *Logger
)

// Init initializes the logger with the given configuration
func Init() {
	level := getLogLevel()

	zerolog.TimeFieldFormat = time.RFC3339
	zerolog.SetGlobalLevel(level)

	// Console output for development
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}

	Default = &Logger{logger: zerolog.New(output).With().Timestamp().Logger()}

	Default.Info().
		Str("level", level.String()).
		Msg("Logger initialized")
}

// New creates a standalone logger writing JSON lines to w.
// The level only applies to this logger.
func New(w io.Writer, level zerolog.Level) *Logger {
	return &Logger{logger: zerolog.New(w).Level(level).With().Timestamp().Logger()}
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// getLogLevel returns the log level from environment variable
func getLogLevel() zerolog.Level {
	levelStr := os.Getenv("LOG_LEVEL")
	if levelStr == "" {
		if os.Getenv("ENVIRONMENT") == "production" {
			return zerolog.InfoLevel
		}
		return zerolog.DebugLevel
	}

	level, err := zerolog.ParseLevel(levelStr)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// WithFields creates a new logger with fields
func (l *Logger) WithFields(fields Fields) *Logger {
	newLogger := l.logger.With()
	for k, v := range fields {
		newLogger = newLogger.Interface(k, v)
	}
	return &Logger{logger: newLogger.Logger()}
}

// WithField creates a new logger with a single field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return &Logger{logger: l.logger.With().Interface(key, value).Logger()}
}

// Debug returns a debug event
func (l *Logger) Debug() *zerolog.Event {
	return l.logger.Debug()
}

// Info returns an info event
func (l *Logger) Info() *zerolog.Event {
	return l.logger.Info()
}

// Warn returns a warn event
func (l *Logger) Warn() *zerolog.Event {
	return l.logger.Warn()
}

// Error returns an error event
func (l *Logger) Error() *zerolog.Event {
	return l.logger.Error()
}

var defaultOnce sync.Once

func ensure() {
	defaultOnce.Do(func() {
		if Default == nil {
			Init()
		}
	})
}

// ForExtractor creates a logger for the extractor of one host
func ForExtractor(host string) *Logger {
	ensure()
	return Default.WithFields(Fields{"component": "extractor", "host": host})
}

// ForFetcher creates a logger for the page fetcher
func ForFetcher() *Logger {
	ensure()
	return Default.WithField("component", "fetcher")
}

// ForCoordinator creates a logger for the scrape coordinator
func ForCoordinator() *Logger {
	ensure()
	return Default.WithField("component", "coordinator")
}

// ForScheduler creates a logger for the refresh scheduler
func ForScheduler() *Logger {
	ensure()
	return Default.WithField("component", "scheduler")
}

// ForNotifier creates a logger for the notifier fan-out
func ForNotifier() *Logger {
	ensure()
	return Default.WithField("component", "notifier")
}

// ForStorage creates a logger for the repository
func ForStorage() *Logger {
	ensure()
	return Default.WithField("component", "storage")
}

// ForPublisher creates a logger for the publisher
func ForPublisher() *Logger {
	ensure()
	return Default.WithField("component", "publisher")
}

// ForCache creates a logger for the cache
func ForCache() *Logger {
	ensure()
	return Default.WithField("component", "cache")
}
