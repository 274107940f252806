package logging

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Span times one step of a multi-step operation such as an asset upload.
type Span struct {
	name   string
	logger *slog.Logger
	start  time.Time
	failed error
}

// StartSpan derives a child span from ctx. The returned context carries a logger
// tagged with trace and span identifiers.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	if ctx == nil {
		ctx = context.Background()
	}

	logger := FromContext(ctx)

	traceID := TraceIDFromContext(ctx)
	if traceID == "" {
		traceID = RequestIDFromContext(ctx)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		ctx = WithTraceID(ctx, traceID)
		logger = logger.With(slog.String("trace_id", traceID))
	}

	spanID := uuid.NewString()
	attrs := []any{slog.String("span_id", spanID), slog.String("span_name", name)}
	if parent := SpanIDFromContext(ctx); parent != "" {
		attrs = append(attrs, slog.String("parent_span_id", parent))
	}
	logger = logger.With(attrs...)

	ctx = WithLogger(ctx, logger)
	ctx = WithSpanID(ctx, spanID)

	return ctx, &Span{name: name, logger: logger, start: time.Now()}
}

// Fail marks the span as failed; End reports the error.
func (s *Span) Fail(err error) {
	if s == nil || err == nil {
		return
	}
	s.failed = err
}

// End emits the completion entry.
func (s *Span) End() {
	if s == nil {
		return
	}
	elapsed := slog.Duration("duration", time.Since(s.start))
	if s.failed != nil {
		s.logger.Warn("span failed", elapsed, slog.Any("error", s.failed))
		return
	}
	s.logger.Debug("span completed", elapsed)
}
