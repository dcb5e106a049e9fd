package logging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// consoleHandler renders one line per record:
//
//	2026-01-02T03:04:05Z INFO fetch: [spec-0266-51602-0001] downloaded bytes=182304
//
// The component and spectrum attributes move into the prefix; the rest trail
// as key=value pairs in the order they were added.
type consoleHandler struct {
	mu        *sync.Mutex
	writer    io.Writer
	level     *slog.LevelVar
	attrs     []slog.Attr
	groups    []string
	addSource bool
}

func newConsoleHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	return &consoleHandler{mu: &sync.Mutex{}, writer: w, level: lvl, addSource: addSource}
}

func (h *consoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

type field struct {
	key   string
	value slog.Value
}

// consoleLine is a record split into its prefix parts and trailing fields.
type consoleLine struct {
	component string
	spectrum  string
	fields    []field
}

func (l *consoleLine) add(key string, v slog.Value) {
	switch {
	case key == "":
	case key == FieldComponent && l.component == "":
		l.component = plainString(v)
	case key == FieldSpectrum && l.spectrum == "":
		l.spectrum = plainString(v)
	case key == FieldComponent || key == FieldSpectrum:
	default:
		l.fields = append(l.fields, field{key: key, value: v})
	}
}

func (h *consoleHandler) Handle(_ context.Context, record slog.Record) error {
	if !h.Enabled(context.Background(), record.Level) {
		return nil
	}

	var line consoleLine
	for _, attr := range h.attrs {
		walkAttr(h.groups, attr, line.add)
	}
	record.Attrs(func(attr slog.Attr) bool {
		walkAttr(h.groups, attr, line.add)
		return true
	})

	ts := record.Time
	if ts.IsZero() {
		ts = time.Now()
	}

	var buf bytes.Buffer
	buf.Grow(128 + 24*len(line.fields))
	fmt.Fprintf(&buf, "%s %s ", ts.UTC().Format(time.RFC3339), levelLabel(record.Level))
	if line.component != "" {
		buf.WriteString(line.component + ": ")
	}
	if line.spectrum != "" {
		buf.WriteString("[" + line.spectrum + "] ")
	}
	msg := strings.TrimSpace(record.Message)
	if msg == "" {
		msg = "(no message)"
	}
	buf.WriteString(msg)
	if src := record.Source(); h.addSource && src != nil {
		fmt.Fprintf(&buf, " [%s:%d]", filepath.Base(src.File), src.Line)
	}
	for _, f := range line.fields {
		buf.WriteString(" " + f.key + "=" + renderValue(f.value))
	}
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.writer.Write(buf.Bytes())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := h.derive()
	next.attrs = append(next.attrs, attrs...)
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	next := h.derive()
	next.groups = append(next.groups, name)
	return next
}

// derive copies h; the mutex stays shared so lines never interleave.
func (h *consoleHandler) derive() *consoleHandler {
	return &consoleHandler{
		mu:        h.mu,
		writer:    h.writer,
		level:     h.level,
		attrs:     append([]slog.Attr(nil), h.attrs...),
		groups:    append([]string(nil), h.groups...),
		addSource: h.addSource,
	}
}

// walkAttr visits attr and any group members with dotted keys.
func walkAttr(prefix []string, attr slog.Attr, visit func(string, slog.Value)) {
	if attr.Equal(slog.Attr{}) {
		return
	}
	v := attr.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		path := prefix
		if attr.Key != "" {
			path = append(append([]string(nil), prefix...), attr.Key)
		}
		for _, member := range v.Group() {
			walkAttr(path, member, visit)
		}
		return
	}
	key := attr.Key
	if len(prefix) > 0 {
		key = strings.Join(prefix, ".") + "." + key
	}
	visit(key, v)
}

// plainString renders v without quoting for use in the line prefix.
func plainString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindAny:
		if err, ok := v.Any().(error); ok {
			return err.Error()
		}
		return fmt.Sprint(v.Any())
	}
	return renderValue(v)
}

func renderValue(v slog.Value) string {
	switch v.Kind() {
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().Round(time.Millisecond).String()
	case slog.KindTime:
		return v.Time().UTC().Format(time.RFC3339)
	}
	s := plainString(v)
	if s == "" || strings.ContainsFunc(s, func(r rune) bool { return r <= ' ' || r == '=' || r == '"' }) {
		return strconv.Quote(s)
	}
	return s
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERROR"
	case level >= slog.LevelWarn:
		return "WARN"
	case level >= slog.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
