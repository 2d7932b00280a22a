// Package logger provides structured logging with colored output.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorGray   = "\033[90m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

// New creates a structured logger writing to stdout at the given level.
// Uses colored text format by default, JSON if LOG_FORMAT=json env var
// is set. Colors can be disabled with NO_COLOR or LOG_COLOR=false.
func New(level string) *slog.Logger {
	l := parseLevel(level)

	if strings.ToLower(os.Getenv("LOG_FORMAT")) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: l}))
	}

	return slog.New(&textHandler{
		w:        os.Stdout,
		level:    l,
		useColor: shouldUseColor(),
	})
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// shouldUseColor determines if colored output should be used.
func shouldUseColor() bool {
	// Respect NO_COLOR env var (https://no-color.org/)
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if v := strings.ToLower(os.Getenv("LOG_COLOR")); v == "false" || v == "0" {
		return false
	}
	return true
}

// textHandler is a slog.Handler that writes one colored line per record.
type textHandler struct {
	w        io.Writer
	level    slog.Level
	useColor bool
	attrs    []slog.Attr
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	h.colored(&buf, colorGray, r.Time.Format("2006-01-02 15:04:05"))
	buf.WriteString(" ")
	h.colored(&buf, levelColor(r.Level), levelLabel(r.Level))
	buf.WriteString(" ")
	buf.WriteString(r.Message)

	r.Attrs(func(a slog.Attr) bool {
		h.writeAttr(&buf, a)
		return true
	})
	for _, a := range h.attrs {
		h.writeAttr(&buf, a)
	}

	buf.WriteString("\n")
	_, err := io.WriteString(h.w, buf.String())
	return err
}

func (h *textHandler) writeAttr(buf *strings.Builder, a slog.Attr) {
	buf.WriteString(" ")
	h.colored(buf, colorGray, a.Key+"="+a.Value.String())
}

func (h *textHandler) colored(buf *strings.Builder, color, s string) {
	if h.useColor {
		buf.WriteString(color)
	}
	buf.WriteString(s)
	if h.useColor {
		buf.WriteString(colorReset)
	}
}

func levelColor(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return colorCyan
	case slog.LevelWarn:
		return colorYellow
	case slog.LevelError:
		return colorRed + colorBold
	default:
		return colorBlue
	}
}

func levelLabel(l slog.Level) string {
	switch l {
	case slog.LevelDebug:
		return "DEBUG"
	case slog.LevelWarn:
		return "WARN "
	case slog.LevelError:
		return "ERROR"
	default:
		return "INFO "
	}
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	merged = append(merged, attrs...)
	return &textHandler{w: h.w, level: h.level, useColor: h.useColor, attrs: merged}
}

func (h *textHandler) WithGroup(_ string) slog.Handler {
	return h
}
