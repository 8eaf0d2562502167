// Package logging sets up the referee's structured logging: slog text
// handlers for console, file and Graylog, an optional OTel bridge, and a
// zerolog adapter for the event dispatcher.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// InstrumentationName is the OTel logger name used by the bridge.
const InstrumentationName = "referee"

// stdout is where console output goes. Swapped in tests.
var stdout io.Writer = os.Stdout

// Options configures SlogManager.Setup.
type Options struct {
	// File receives the log in text form. Without a file the log goes to stdout.
	File  io.Writer
	Level string
	// Graylog receives a copy of every record, see NewGraylogWriter.
	Graylog io.Writer
	// Provider enables the OTel handler when set.
	Provider *sdklog.LoggerProvider
	// Match tags every record with the running match.
	Match MatchSource
}

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger      *slog.Logger
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds the logger. Calling it again replaces the previous logger.
func (m *SlogManager) Setup(opts Options) {
	m.logProvider = opts.Provider

	handlerOpts := &slog.HandlerOptions{
		Level: parseLevel(opts.Level),
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
				}
			}
			return a
		},
	}

	var handlers []slog.Handler
	if opts.File != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.File, handlerOpts))
	} else {
		handlers = append(handlers, slog.NewTextHandler(stdout, handlerOpts))
	}
	if opts.Graylog != nil {
		handlers = append(handlers, slog.NewTextHandler(opts.Graylog, handlerOpts))
	}
	if opts.Provider != nil {
		handlers = append(handlers, otelslog.NewHandler(InstrumentationName, otelslog.WithLoggerProvider(opts.Provider)))
	}

	var handler slog.Handler = NewMultiHandler(handlers...)
	if opts.Match != nil {
		handler = NewMatchHandler(handler, opts.Match)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", parseLevel(opts.Level).String())
}

// Logger returns the configured slog.Logger, or slog.Default before Setup.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
