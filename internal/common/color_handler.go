package common

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"
)

// ANSI color codes
const (
	Reset   = "\033[0m"
	Red     = "\033[31m"
	Green   = "\033[32m"
	Yellow  = "\033[33m"
	Magenta = "\033[35m"
	Cyan    = "\033[36m"
	White   = "\033[37m"
	Gray    = "\033[90m"
)

// ColorHandler is a slog handler producing one colorized line per record.
// Attribute values pass through a Masker before they are written.
type ColorHandler struct {
	opts     *slog.HandlerOptions
	mu       *sync.Mutex
	writer   io.Writer
	attrs    []slog.Attr
	groups   []string
	masker   *Masker
	useColor bool
}

// NewColorHandler creates a new color handler
func NewColorHandler(w io.Writer, opts *slog.HandlerOptions) *ColorHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &ColorHandler{
		opts:     opts,
		mu:       &sync.Mutex{},
		writer:   w,
		useColor: IsTerminal(w),
		masker:   NewMasker(),
	}
}

// IsTerminal reports whether w is a character device on a platform where ANSI colors are safe.
func IsTerminal(w io.Writer) bool {
	if runtime.GOOS == "windows" {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return stat.Mode()&os.ModeCharDevice != 0
}

// Enabled reports whether the handler handles records at the given level
func (h *ColorHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle handles the Record
func (h *ColorHandler) Handle(_ context.Context, r slog.Record) error {
	var sb strings.Builder

	if !r.Time.IsZero() {
		sb.WriteString(h.colorize(Gray, r.Time.Format(time.RFC3339)))
		sb.WriteByte(' ')
	}
	sb.WriteString(h.formatLevel(r.Level))
	sb.WriteByte(' ')
	if len(h.groups) > 0 {
		sb.WriteString(h.colorize(Cyan, "["+strings.Join(h.groups, ".")+"]"))
		sb.WriteByte(' ')
	}
	sb.WriteString(h.colorize(White, r.Message))

	attrs := make([]slog.Attr, 0, r.NumAttrs()+len(h.attrs))
	attrs = append(attrs, h.attrs...)
	r.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	for _, a := range attrs {
		sb.WriteByte(' ')
		sb.WriteString(h.colorize(Cyan, a.Key))
		sb.WriteByte('=')
		sb.WriteString(h.formatValue(a.Key, a.Value))
	}
	sb.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, sb.String())
	return err
}

func (h *ColorHandler) formatLevel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.colorize(Red, "[ERROR]")
	case level >= slog.LevelWarn:
		return h.colorize(Yellow, "[WARN ]")
	case level >= slog.LevelInfo:
		return h.colorize(Green, "[INFO ]")
	default:
		return h.colorize(Gray, "[DEBUG]")
	}
}

func (h *ColorHandler) formatValue(key string, v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if h.masker != nil {
			if masked, ok := h.masker.MaskValue(key, s).(string); ok {
				s = masked
			}
		}
		if key == "error" {
			return h.colorize(Red, fmt.Sprintf("%q", s))
		}
		return h.colorize(White, fmt.Sprintf("%q", s))
	case slog.KindInt64, slog.KindUint64, slog.KindFloat64:
		return h.colorize(Magenta, v.String())
	case slog.KindBool:
		if v.Bool() {
			return h.colorize(Green, "true")
		}
		return h.colorize(Red, "false")
	case slog.KindDuration:
		return h.colorize(Yellow, v.Duration().String())
	case slog.KindTime:
		return h.colorize(Gray, v.Time().Format(time.RFC3339))
	default:
		s := v.String()
		if h.masker != nil {
			s = h.masker.MaskString(s)
		}
		if key == "error" {
			return h.colorize(Red, fmt.Sprintf("%q", s))
		}
		return h.colorize(White, s)
	}
}

func (h *ColorHandler) colorize(color, text string) string {
	if !h.useColor {
		return text
	}
	return color + text + Reset
}

func (h *ColorHandler) clone() *ColorHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	c.groups = append([]string(nil), h.groups...)
	return &c
}

// WithAttrs returns a new ColorHandler with the given attributes added
func (h *ColorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	c.attrs = append(c.attrs, attrs...)
	return c
}

// WithGroup returns a new ColorHandler with the given group name added
func (h *ColorHandler) WithGroup(name string) slog.Handler {
	c := h.clone()
	c.groups = append(c.groups, name)
	return c
}

// SetMasker sets the masker for this handler; nil disables masking.
func (h *ColorHandler) SetMasker(masker *Masker) {
	h.masker = masker
}

// SetColorEnabled enables or disables colors
func (h *ColorHandler) SetColorEnabled(enabled bool) {
	h.useColor = enabled
}
