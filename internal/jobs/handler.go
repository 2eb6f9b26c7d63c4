package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// captureHandler keeps the records of a job and forwards them to the
// process handler.
type captureHandler struct {
	next   slog.Handler
	job    *Job
	attrs  []slog.Attr
	groups []string
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	// debug records are kept even when the process handler drops them
	return true
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		key := a.Key
		if len(h.groups) > 0 {
			key = strings.Join(h.groups, ".") + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)
	h.job.appendLog(LogEntry{Time: r.Time, Level: r.Level.String(), Message: b.String()})

	if h.next.Enabled(ctx, r.Level) {
		return h.next.Handle(ctx, r)
	}
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{
		next:   h.next.WithAttrs(attrs),
		job:    h.job,
		attrs:  append(append([]slog.Attr(nil), h.attrs...), attrs...),
		groups: h.groups,
	}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &captureHandler{
		next:   h.next.WithGroup(name),
		job:    h.job,
		attrs:  h.attrs,
		groups: append(append([]string(nil), h.groups...), name),
	}
}
