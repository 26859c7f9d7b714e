package lgr

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/mdobak/go-xerrors"
	"go.opentelemetry.io/otel/trace"
)

type stackFrame struct {
	Func   string `json:"func"`
	Source string `json:"source"`
	Line   int    `json:"line"`
}

// handler fans records out to a coloured console handler and an optional
// JSON file handler.
type handler struct {
	handlers []slog.Handler
}

func NewHandler(console io.Writer, file io.Writer, level slog.Level) slog.Handler {
	h := &handler{}
	h.handlers = append(h.handlers, slog.NewTextHandler(console, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: consoleAttr,
	}))
	if file != nil {
		h.handlers = append(h.handlers, slog.NewJSONHandler(file, &slog.HandlerOptions{
			Level:       level,
			ReplaceAttr: replaceAttr,
		}))
	}
	return h
}

func (h *handler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, inner := range h.handlers {
		if inner.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (h *handler) Handle(ctx context.Context, r slog.Record) error {
	if id := runFrom(ctx); id != "" {
		r.AddAttrs(slog.String("run", id))
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		r.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	var errs []error
	for _, inner := range h.handlers {
		if !inner.Enabled(ctx, r.Level) {
			continue
		}
		if err := inner.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &handler{}
	for _, inner := range h.handlers {
		out.handlers = append(out.handlers, inner.WithAttrs(attrs))
	}
	return out
}

func (h *handler) WithGroup(name string) slog.Handler {
	out := &handler{}
	for _, inner := range h.handlers {
		out.handlers = append(out.handlers, inner.WithGroup(name))
	}
	return out
}

func consoleAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && len(groups) == 0 {
		level, ok := a.Value.Any().(slog.Level)
		if ok {
			a.Value = slog.StringValue(levelColor(level).Sprint(level.String()))
		}
		return a
	}
	return replaceAttr(groups, a)
}

func levelColor(level slog.Level) *color.Color {
	switch {
	case level >= slog.LevelError:
		return color.New(color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		return color.New(color.FgYellow)
	case level >= slog.LevelInfo:
		return color.New(color.FgCyan)
	default:
		return color.New(color.FgMagenta)
	}
}

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindAny {
		return a
	}
	if err, ok := a.Value.Any().(error); ok {
		a.Value = fmtErr(err)
	}
	return a
}

func fmtErr(err error) slog.Value {
	attrs := []slog.Attr{slog.String("msg", err.Error())}
	if frames := marshalStack(err); frames != nil {
		attrs = append(attrs, slog.Any("trace", frames))
	}
	return slog.GroupValue(attrs...)
}

func marshalStack(err error) []stackFrame {
	callers := xerrors.StackTrace(err)
	if len(callers) == 0 {
		return nil
	}

	frames := callers.Frames()
	s := make([]stackFrame, len(frames))
	for i, f := range frames {
		s[i] = stackFrame{
			Source: filepath.Join(filepath.Base(filepath.Dir(f.File)), filepath.Base(f.File)),
			Func:   filepath.Base(f.Function),
			Line:   f.Line,
		}
	}
	return s
}
