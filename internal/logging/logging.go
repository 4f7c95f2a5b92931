// Package logging sets up the process-wide slog logger and helpers for
// logging terminal traffic.
package logging

import (
	"context"
	"log/slog"
	"os"
	"strings"
)

// level is shared by every handler Setup installs so SetLevel can change
// verbosity without rebuilding the logger.
var level = new(slog.LevelVar)

// Byte previews are cut to these lengths.
const (
	previewTextLen = 120
	previewHexLen  = 32
)

// redacted replaces the value of any attribute whose key contains one of
// these words. "input" covers keystrokes sent to a shell.
const redacted = "[REDACTED]"

var sensitiveKeys = []string{
	"password", "passphrase", "secret", "token",
	"key", "credential", "auth", "input",
}

func sensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}

// SanitizingHandler redacts sensitive attributes, including ones nested
// in groups, before passing records on. With sanitize off it only forwards.
type SanitizingHandler struct {
	handler  slog.Handler
	sanitize bool
}

func NewSanitizingHandler(handler slog.Handler, sanitize bool) *SanitizingHandler {
	return &SanitizingHandler{handler: handler, sanitize: sanitize}
}

func (h *SanitizingHandler) Enabled(ctx context.Context, l slog.Level) bool {
	return h.handler.Enabled(ctx, l)
}

func (h *SanitizingHandler) Handle(ctx context.Context, r slog.Record) error {
	if !h.sanitize {
		return h.handler.Handle(ctx, r)
	}
	out := slog.NewRecord(r.Time, r.Level, r.Message, r.PC)
	r.Attrs(func(a slog.Attr) bool {
		out.AddAttrs(redact(a))
		return true
	})
	return h.handler.Handle(ctx, out)
}

func (h *SanitizingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h.sanitize {
		attrs = redactAll(attrs)
	}
	return &SanitizingHandler{handler: h.handler.WithAttrs(attrs), sanitize: h.sanitize}
}

func (h *SanitizingHandler) WithGroup(name string) slog.Handler {
	return &SanitizingHandler{handler: h.handler.WithGroup(name), sanitize: h.sanitize}
}

func redact(a slog.Attr) slog.Attr {
	if sensitive(a.Key) {
		return slog.String(a.Key, redacted)
	}
	// LogValuers such as Bytes may expand into groups.
	if v := a.Value.Resolve(); v.Kind() == slog.KindGroup {
		return slog.Attr{Key: a.Key, Value: slog.GroupValue(redactAll(v.Group())...)}
	}
	return a
}

func redactAll(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		out[i] = redact(a)
	}
	return out
}

// ParseLevel maps a config level name to a slog level. Unknown names map
// to info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
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

// SetLevel changes the level of the logger installed by Setup.
func SetLevel(name string) {
	level.Set(ParseLevel(name))
}

// Setup installs a JSON logger on stderr as the slog default. stdout is
// left alone because it carries the MCP stdio transport.
func Setup(name string, sanitize bool) {
	SetLevel(name)
	inner := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(NewSanitizingHandler(inner, sanitize)))
}

// Bytes returns an attribute previewing raw terminal bytes as quoted text
// and hex. The preview is only built if the record is written.
func Bytes(key string, data []byte) slog.Attr {
	return slog.Any(key, preview(data))
}

type preview []byte

func (p preview) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int("len", len(p)),
		slog.String("text", truncateForLog(string(p), previewTextLen)),
		slog.String("hex", hexDump(p, previewHexLen)),
	)
}

func truncateForLog(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

func hexDump(data []byte, maxLen int) string {
	if len(data) > maxLen {
		data = data[:maxLen]
	}
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteByte(hexChar(c >> 4))
		b.WriteByte(hexChar(c & 0x0f))
	}
	return b.String()
}

func hexChar(n byte) byte {
	if n < 10 {
		return '0' + n
	}
	return 'a' + n - 10
}
