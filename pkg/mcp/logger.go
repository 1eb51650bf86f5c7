package mcp

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/macropower/rulesync/pkg/log"
)

// WithTracing wraps a tool handler with a span per call and structured
// logging, recording errors on the span.
func WithTracing[In, Out any](
	tracer trace.Tracer,
	handler mcp.ToolHandlerFor[In, Out],
) mcp.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, Out, error) {
		var name string
		if req != nil && req.Params != nil {
			name = req.Params.Name
		}

		ctx, span := tracer.Start(ctx, name)
		defer span.End()

		logger := log.WithContext(ctx).With(slog.String("tool", name))
		logger.DebugContext(ctx, "handling tool call", slog.Any("args", in))

		result, out, err := handler(ctx, req, in)
		if err != nil {
			logger.WarnContext(ctx, "tool call failed", slog.Any("err", err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "tool call failed")
		} else {
			logger.DebugContext(ctx, "tool call completed")
		}

		return result, out, err
	}
}
