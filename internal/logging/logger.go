// Package logging provides structured logging for the core.
package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Config holds logging configuration.
type Config struct {
	Level  string
	Format string // "json" or "console"
	Output io.Writer
}

// Logger wraps zerolog.Logger with domain-specific context constructors.
type Logger struct {
	zerolog.Logger
}

// New creates a structured logger.
func New(cfg Config) *Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var output io.Writer
	if cfg.Output != nil {
		output = cfg.Output
	} else {
		output = os.Stdout
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}
	}

	logger := zerolog.New(output).
		With().
		Timestamp().
		Str("service", "zkim-core").
		Logger()

	return &Logger{Logger: logger}
}

// WithComponent returns a logger tagged with a component name, e.g.
// "encryption", "search", "recovery".
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With().Str("component", component).Logger()}
}

// WithFile returns a logger tagged with a fileId.
func (l *Logger) WithFile(fileID string) *Logger {
	return &Logger{Logger: l.With().Str("file_id", fileID).Logger()}
}

// WithUser returns a logger tagged with a userId.
func (l *Logger) WithUser(userID string) *Logger {
	return &Logger{Logger: l.With().Str("user_id", userID).Logger()}
}

// WithTrapdoor returns a logger tagged with a trapdoorId.
func (l *Logger) WithTrapdoor(trapdoorID string) *Logger {
	return &Logger{Logger: l.With().Str("trapdoor_id", trapdoorID).Logger()}
}

// WithObject returns a logger tagged with a storage objectId.
func (l *Logger) WithObject(objectID string) *Logger {
	return &Logger{Logger: l.With().Str("object_id", objectID).Logger()}
}
