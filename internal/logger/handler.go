package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// lineHandler renders "<time> <LEVEL> <group>: <message> k=v ..." on one line.
type lineHandler struct {
	opts  *slog.HandlerOptions
	mu    *sync.Mutex
	w     io.Writer
	group string
	attrs []slog.Attr
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Time.UTC().Format(time.RFC3339))
	b.WriteByte(' ')
	b.WriteString(strings.ToUpper(r.Level.String()))
	b.WriteByte(' ')
	if h.group != "" {
		b.WriteString(h.group)
		b.WriteString(": ")
	}
	b.WriteString(r.Message)

	for _, a := range h.attrs {
		writeAttr(&b, a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, a)
		return true
	})
	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func writeAttr(b *strings.Builder, a slog.Attr) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}
	v := a.Value.String()
	if strings.ContainsAny(v, " \t\n\"=") {
		v = fmt.Sprintf("%q", v)
	}
	b.WriteByte(' ')
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(v)
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	threshold := slog.LevelInfo
	if h.opts != nil && h.opts.Level != nil {
		threshold = h.opts.Level.Level()
	}
	return level >= threshold
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &lineHandler{
		opts:  h.opts,
		mu:    h.mu,
		w:     h.w,
		group: h.group,
		attrs: merged,
	}
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	return &lineHandler{
		opts:  h.opts,
		mu:    h.mu,
		w:     h.w,
		group: name,
		attrs: h.attrs,
	}
}

func newLineHandler(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	return &lineHandler{
		opts: opts,
		mu:   &sync.Mutex{},
		w:    w,
	}
}
