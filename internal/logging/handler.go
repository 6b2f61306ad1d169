// ABOUTME: Colourised slog handler for human-readable development logs
// ABOUTME: Writes one line per record with level badge and key=value attrs

package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/fatih/color"
)

// palette holds per-handler colours. The process-wide color.NoColor is
// left alone.
type palette struct {
	time, debug, info, warn, err, key *color.Color
}

func newPalette(noColor bool) *palette {
	p := &palette{
		time:  color.New(color.FgHiBlack),
		debug: color.New(color.FgMagenta),
		info:  color.New(color.FgCyan),
		warn:  color.New(color.FgYellow),
		err:   color.New(color.FgRed, color.Bold),
		key:   color.New(color.FgHiBlack),
	}
	if noColor {
		for _, c := range []*color.Color{p.time, p.debug, p.info, p.warn, p.err, p.key} {
			c.DisableColor()
		}
	}
	return p
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     *sync.Mutex
	out    io.Writer
	level  slog.Leveler
	colors *palette
	attrs  []slog.Attr
	groups []string
}

func newColorHandler(out io.Writer, level slog.Leveler, noColor bool) *colorHandler {
	return &colorHandler{
		mu:     &sync.Mutex{},
		out:    out,
		level:  level,
		colors: newPalette(noColor),
	}
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	var buf strings.Builder

	c := h.colors
	buf.WriteString(c.time.Sprint(r.Time.Format("15:04:05") + " "))

	switch {
	case r.Level < slog.LevelInfo:
		buf.WriteString(c.debug.Sprint("DBG "))
	case r.Level < slog.LevelWarn:
		buf.WriteString(c.info.Sprint("INF "))
	case r.Level < slog.LevelError:
		buf.WriteString(c.warn.Sprint("WRN "))
	default:
		buf.WriteString(c.err.Sprint("ERR "))
	}

	buf.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	// Handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		writeAttr(&buf, c.key, "", a)
	}

	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&buf, c.key, prefix, a)
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func writeAttr(buf *strings.Builder, key *color.Color, prefix string, a slog.Attr) {
	if a.Equal(slog.Attr{}) {
		return
	}
	buf.WriteString(key.Sprint(" " + prefix + a.Key + "="))
	buf.WriteString(a.Value.String())
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		a.Key = prefix + a.Key
		newAttrs = append(newAttrs, a)
	}
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		colors: h.colors,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		mu:     h.mu,
		out:    h.out,
		level:  h.level,
		colors: h.colors,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
