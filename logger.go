package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// ANSI Color Codes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Cyan   = "\033[36m"
	Gray   = "\033[90m"
)

// TagKey is the attribute that overrides the level tag, e.g. MOVE or DUP.
const TagKey = "tag"

// consoleHandler prints records as "[TAG] message key=value ...".
// Info and Debug are shown only when verbose.
type consoleHandler struct {
	mu      *sync.Mutex
	out     io.Writer
	verbose bool
	color   bool
	attrs   []slog.Attr
	group   string
}

func newConsoleHandler(out io.Writer, verbose, color bool) *consoleHandler {
	return &consoleHandler{mu: &sync.Mutex{}, out: out, verbose: verbose, color: color}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.verbose || level >= slog.LevelWarn
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	tag := levelTag(r.Level)
	var sb strings.Builder
	sb.WriteString(r.Message)

	write := func(a slog.Attr) {
		if a.Key == TagKey {
			tag = a.Value.String()
			return
		}
		if a.Equal(slog.Attr{}) {
			return
		}
		sb.WriteByte(' ')
		sb.WriteString(a.Key)
		sb.WriteByte('=')
		v := a.Value.Resolve().String()
		if strings.ContainsAny(v, " \t\"") {
			v = fmt.Sprintf("%q", v)
		}
		sb.WriteString(v)
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		if h.group != "" && a.Key != TagKey {
			a.Key = h.group + "." + a.Key
		}
		write(a)
		return true
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.color {
		_, err := fmt.Fprintf(h.out, "%s[%s]%s %s\n", tagColor(r.Level, tag), tag, Reset, sb.String())
		return err
	}
	_, err := fmt.Fprintf(h.out, "[%s] %s\n", tag, sb.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	n := *h
	n.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	n.attrs = append(n.attrs, h.attrs...)
	for _, a := range attrs {
		if h.group != "" && a.Key != TagKey {
			a.Key = h.group + "." + a.Key
		}
		n.attrs = append(n.attrs, a)
	}
	return &n
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	n := *h
	if n.group != "" {
		n.group += "." + name
	} else {
		n.group = name
	}
	return &n
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERR "
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DBG "
	}
}

func tagColor(l slog.Level, tag string) string {
	switch {
	case l >= slog.LevelError:
		return Red
	case l >= slog.LevelWarn:
		return Yellow
	}
	switch tag {
	case "INFO":
		return Blue
	case "DBG ", "DRY":
		return Gray
	case "SKIP", "TRASH":
		return Cyan
	default:
		return Green
	}
}
