package logger

import (
	"errors"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// defaultService tags log lines emitted before New runs.
const defaultService = "chat-api"

var (
	globalLogger zerolog.Logger
	once         sync.Once
)

// GetLogger returns the process-wide logger. Until New installs the
// configured one it falls back to console output at info level.
func GetLogger() zerolog.Logger {
	once.Do(func() {
		globalLogger = build(defaultService, zerolog.InfoLevel, consoleWriter())
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	})
	return globalLogger
}

// New builds a logger for the given service from the configured level and
// format ("json" or "console") and installs it as the process-wide instance.
func New(service, level, format string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Logger{}, err
	}

	var out io.Writer
	switch strings.ToLower(format) {
	case "json":
		out = os.Stdout
	case "console":
		out = consoleWriter()
	default:
		return zerolog.Logger{}, errors.New("unsupported log format")
	}

	zerolog.SetGlobalLevel(lvl)
	globalLogger = build(service, lvl, out)
	return globalLogger, nil
}

func build(service string, lvl zerolog.Level, out io.Writer) zerolog.Logger {
	return zerolog.New(out).With().Timestamp().Str("service", service).Logger().Level(lvl)
}

func consoleWriter() zerolog.ConsoleWriter {
	return zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
}
