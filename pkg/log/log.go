// Package log configures [log/slog] handlers for rulesync.
package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/muesli/termenv"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/term"

	charmlog "github.com/charmbracelet/log"
)

type (
	Format string
	Level  string

	contextKey string
)

const (
	FormatJSON   Format = "json"
	FormatLogfmt Format = "logfmt"
	FormatText   Format = "text"

	LevelError Level = "error"
	LevelWarn  Level = "warn"
	LevelInfo  Level = "info"
	LevelDebug Level = "debug"

	loggerContextKey contextKey = "logger"
)

var (
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrUnknownLogLevel  = errors.New("unknown log level")
	ErrUnknownLogFormat = errors.New("unknown log format")

	AllFormats = []string{
		string(FormatJSON),
		string(FormatLogfmt),
		string(FormatText),
	}
	AllLevels = []string{
		string(LevelError),
		string(LevelWarn),
		string(LevelInfo),
		string(LevelDebug),
	}
)

// CreateHandlerWithStrings creates a [slog.Handler] by strings.
func CreateHandlerWithStrings(w io.Writer, logLevel, logFormat string) (slog.Handler, error) {
	logLvl, err := GetLevel(logLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	logFmt, err := GetFormat(logFormat)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}

	return CreateHandler(w, logLvl, logFmt), nil
}

// CreateHandler creates a [slog.Handler]. Source locations are only
// reported at debug level.
func CreateHandler(w io.Writer, logLvl slog.Level, logFmt Format) slog.Handler {
	opts := &slog.HandlerOptions{
		AddSource: logLvl <= slog.LevelDebug,
		Level:     logLvl,
	}

	switch logFmt {
	case FormatJSON:
		return slog.NewJSONHandler(w, opts)

	case FormatLogfmt:
		return slog.NewTextHandler(w, opts)

	case FormatText:
		return newCharmLogHandler(w, logLvl)
	}

	return nil
}

func GetLevel(level string) (slog.Level, error) {
	switch Level(strings.ToLower(level)) {
	case LevelError:
		return slog.LevelError, nil
	case LevelWarn, "warning":
		return slog.LevelWarn, nil
	case LevelInfo:
		return slog.LevelInfo, nil
	case LevelDebug:
		return slog.LevelDebug, nil
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownLogLevel, level)
}

func GetFormat(format string) (Format, error) {
	logFmt := Format(strings.ToLower(format))
	if slices.Contains([]Format{FormatJSON, FormatLogfmt, FormatText}, logFmt) {
		return logFmt, nil
	}

	return "", fmt.Errorf("%w: %q", ErrUnknownLogFormat, format)
}

// DefaultFormat returns [FormatText] when w is a terminal, and
// [FormatLogfmt] otherwise.
func DefaultFormat(w io.Writer) Format {
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // G115: fd fits in int.
		return FormatText
	}

	return FormatLogfmt
}

func newCharmLogHandler(w io.Writer, level slog.Level) slog.Handler {
	//nolint:gosec // G115: input from GetLevel.
	lvl := int32(level)

	logger := charmlog.NewWithOptions(w, charmlog.Options{
		Level:           charmlog.Level(lvl),
		Formatter:       charmlog.TextFormatter,
		ReportTimestamp: true,
		ReportCaller:    level <= slog.LevelDebug,
		TimeFormat:      time.StampMilli,
	})
	logger.SetColorProfile(termenv.NewOutput(w).EnvColorProfile())

	return logger
}

// NewContext returns a copy of ctx carrying logger, which [WithContext]
// returns in place of the default logger.
func NewContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey, logger)
}

// WithContext returns the logger for ctx, annotated with the trace ID when a
// span is active.
func WithContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerContextKey).(*slog.Logger)
	if !ok {
		logger = slog.Default()
	}

	if span := trace.SpanFromContext(ctx); span.SpanContext().IsValid() {
		traceID := span.SpanContext().TraceID().String()
		// Truncate trace ID to first 8 characters for readability.
		if len(traceID) > 8 {
			traceID = traceID[:8]
		}

		return logger.With(slog.String("trace_id", traceID))
	}

	return logger
}
