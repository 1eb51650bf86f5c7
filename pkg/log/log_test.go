package log_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/macropower/rulesync/pkg/log"
)

func TestCreateHandlerWithStrings(t *testing.T) {
	t.Parallel()

	tcs := map[string]struct {
		level   string
		format  string
		want    string
		wantErr error
	}{
		"json": {
			level:  "info",
			format: "json",
			want:   `"msg":"hello"`,
		},
		"logfmt": {
			level:  "WARNING",
			format: "logfmt",
			want:   "msg=hello",
		},
		"text": {
			level:  "debug",
			format: "text",
			want:   "hello",
		},
		"unknown level": {
			level:   "loud",
			format:  "json",
			wantErr: log.ErrUnknownLogLevel,
		},
		"unknown format": {
			level:   "info",
			format:  "xml",
			wantErr: log.ErrUnknownLogFormat,
		},
	}

	for name, tc := range tcs {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			h, err := log.CreateHandlerWithStrings(&buf, tc.level, tc.format)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, log.ErrInvalidArgument)
				require.ErrorIs(t, err, tc.wantErr)

				return
			}

			require.NoError(t, err)

			slog.New(h).Error("hello")
			assert.Contains(t, buf.String(), tc.want)
		})
	}
}

func TestCreateHandler_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(log.CreateHandler(&buf, slog.LevelWarn, log.FormatLogfmt))
	logger.Info("quiet")
	logger.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
	assert.NotContains(t, buf.String(), "source=")
}

func TestDefaultFormat(t *testing.T) {
	t.Parallel()

	assert.Equal(t, log.FormatLogfmt, log.DefaultFormat(&bytes.Buffer{}))
}

func TestWithContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(log.CreateHandler(&buf, slog.LevelInfo, log.FormatLogfmt))
	ctx := log.NewContext(context.Background(), logger)

	log.WithContext(ctx).Info("plain")
	assert.Contains(t, buf.String(), "msg=plain")
	assert.NotContains(t, buf.String(), "trace_id")

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() {
		assert.NoError(t, tp.Shutdown(context.Background()))
	})

	ctx, span := tp.Tracer("test").Start(ctx, "op")
	defer span.End()

	log.WithContext(ctx).Info("traced")
	assert.Contains(t, buf.String(), "trace_id="+span.SpanContext().TraceID().String()[:8])
}
