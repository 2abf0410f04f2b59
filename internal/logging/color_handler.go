// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss"
)

// colorHandler wraps a slog.TextHandler and recolors the level token on its
// way out, honoring LOG_COLOR_{ERROR,WARN,INFO,DEBUG,TRACE} overrides
// (ANSI SGR codes, default 31/93/34/32/90).
type colorHandler struct {
	text  *slog.TextHandler
	w     io.Writer
	attrs []slog.Attr
}

func newColorHandler(w io.Writer, opts *slog.HandlerOptions) *colorHandler {
	return &colorHandler{text: slog.NewTextHandler(w, opts), w: w}
}

func (h *colorHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.text.Enabled(ctx, level)
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &colorHandler{text: h.text.WithAttrs(attrs).(*slog.TextHandler), w: h.w, attrs: append(h.attrs, attrs...)}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	return &colorHandler{text: h.text.WithGroup(name).(*slog.TextHandler), w: h.w, attrs: h.attrs}
}

// Handle formats the record itself rather than delegating to the wrapped
// TextHandler, since slog.TextHandler has no hook for per-field styling;
// h.text is kept around only to answer Enabled. Attrs bound via WithAttrs
// are rendered first, followed by the record's own attrs.
func (h *colorHandler) Handle(ctx context.Context, r slog.Record) error {
	style := styleFor(r.Level)
	levelText := style.Render(r.Level.String())

	buf := make([]byte, 0, 256)
	buf = append(buf, "time="...)
	buf = r.Time.AppendFormat(buf, "2006-01-02T15:04:05.000Z07:00")
	buf = append(buf, " level="...)
	buf = append(buf, levelText...)
	buf = append(buf, " msg="...)
	buf = strconv.AppendQuote(buf, r.Message)
	for _, a := range h.attrs {
		buf = append(buf, ' ')
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = strconv.AppendQuote(buf, a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf = append(buf, ' ')
		buf = append(buf, a.Key...)
		buf = append(buf, '=')
		buf = strconv.AppendQuote(buf, a.Value.String())
		return true
	})
	buf = append(buf, '\n')

	_, err := h.w.Write(buf)
	return err
}

func styleFor(level slog.Level) lipgloss.Style {
	var code string
	switch {
	case level >= slog.LevelError:
		code = envOr("LOG_COLOR_ERROR", "31")
	case level >= slog.LevelWarn:
		code = envOr("LOG_COLOR_WARN", "93")
	case level >= slog.LevelInfo:
		code = envOr("LOG_COLOR_INFO", "34")
	case level >= slog.LevelDebug:
		code = envOr("LOG_COLOR_DEBUG", "32")
	default:
		code = envOr("LOG_COLOR_TRACE", "90")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.ANSIColor(ansiCodeToIndex(code)))
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ansiCodeToIndex converts an SGR foreground code ("31", "93", ...) to the
// 0-15 index lipgloss.ANSIColor expects.
func ansiCodeToIndex(code string) uint {
	n, err := strconv.Atoi(code)
	if err != nil {
		return 7
	}
	switch {
	case n >= 30 && n <= 37:
		return uint(n - 30)
	case n >= 90 && n <= 97:
		return uint(n-90) + 8
	default:
		return 7
	}
}
