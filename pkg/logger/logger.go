// Package logger provides the slog handler and HTTP middleware shared by the service.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
)

const service = "floor-svc"

// Handler writes JSON records and adds request and trace ids found on the context.
type Handler struct {
	slog.Handler
}

// NewHandler returns a JSON handler writing to stdout. opts may be nil.
func NewHandler(opts *slog.HandlerOptions) *Handler {
	return NewHandlerTo(os.Stdout, opts)
}

// NewHandlerTo is NewHandler with an explicit sink.
func NewHandlerTo(w io.Writer, opts *slog.HandlerOptions) *Handler {
	if opts == nil {
		opts = &slog.HandlerOptions{Level: slog.LevelDebug}
	}
	base := slog.NewJSONHandler(w, opts).WithAttrs([]slog.Attr{slog.String("service", service)})

	return &Handler{Handler: base}
}

func (h *Handler) Handle(ctx context.Context, r slog.Record) error {
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		r.AddAttrs(slog.String("request_id", reqID))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	return h.Handler.Handle(ctx, r)
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	return &Handler{Handler: h.Handler.WithGroup(name)}
}
