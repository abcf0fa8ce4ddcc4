package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config captures logging configuration options.
type Config struct {
	Level    string
	Dir      string
	Filename string
}

// Logger wraps the structured logger and the optional file sink.
type Logger struct {
	slogger *slog.Logger
	file    *os.File
}

// New creates a Logger writing colored text to stdout and, when a
// directory and filename are configured, plain text to a log file.
func New(cfg Config) (*Logger, error) {
	writers := []io.Writer{os.Stdout}

	var file *os.File
	if cfg.Dir != "" && cfg.Filename != "" {
		if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
		path := filepath.Join(cfg.Dir, cfg.Filename)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		file = f
		writers = append(writers, f)
	}

	handler := &textHandler{
		writer: io.MultiWriter(writers...),
		level:  parseLevel(cfg.Level),
	}
	return &Logger{
		slogger: slog.New(handler),
		file:    file,
	}, nil
}

// Slog exposes the structured logger.
func (l *Logger) Slog() *slog.Logger {
	return l.slogger
}

// Close releases the file sink if one was opened.
func (l *Logger) Close() error {
	if l.file != nil {
		return l.file.Close()
	}
	return nil
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

const (
	colorReset = "\x1b[0m"
	colorTime  = "\x1b[90m"
	colorDebug = "\x1b[36m"
	colorInfo  = "\x1b[32m"
	colorWarn  = "\x1b[33m"
	colorError = "\x1b[31m"
)

// Known module tags get their own color so components stand out in
// interleaved output.
var moduleColors = map[string]string{
	"[BOOT]":   "\x1b[96m",
	"[WORKER]": "\x1b[94m",
	"[STORE]":  "\x1b[95m",
	"[HTTP]":   "\x1b[92m",
	"[BOT]":    "\x1b[34m",
}

// textHandler is a compact slog handler producing timestamped, colored
// single-line records.
type textHandler struct {
	writer io.Writer
	level  slog.Level
	attrs  []slog.Attr
	mu     sync.Mutex
}

func (h *textHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *textHandler) Handle(_ context.Context, r slog.Record) error {
	var levelColor string
	switch r.Level {
	case slog.LevelDebug:
		levelColor = colorDebug
	case slog.LevelWarn:
		levelColor = colorWarn
	case slog.LevelError:
		levelColor = colorError
	default:
		levelColor = colorInfo
	}

	msg := r.Message
	for tag, color := range moduleColors {
		if strings.HasPrefix(msg, tag) {
			msg = color + tag + colorReset + msg[len(tag):]
			break
		}
	}

	var b strings.Builder
	b.WriteString(colorTime + r.Time.Format("2006-01-02 15:04:05.000") + colorReset)
	b.WriteString(" " + levelColor + strings.ToUpper(r.Level.String()) + colorReset + " ")
	b.WriteString(msg)

	for _, attr := range h.attrs {
		b.WriteString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
	}
	r.Attrs(func(attr slog.Attr) bool {
		b.WriteString(fmt.Sprintf(" %s=%v", attr.Key, attr.Value))
		return true
	})
	b.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.writer, b.String())
	return err
}

func (h *textHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	clone := &textHandler{
		writer: h.writer,
		level:  h.level,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
	return clone
}

func (h *textHandler) WithGroup(string) slog.Handler {
	return h
}
