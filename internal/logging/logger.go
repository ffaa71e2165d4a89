package logging

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity levels.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a case-insensitive name to a Level, defaulting to info.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields is a set of structured key/value pairs attached to an entry.
type Fields = map[string]interface{}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Fields    Fields `json:"fields,omitempty"`
}

// sink is shared by a logger and every child derived from it so that
// concurrent writes from children never interleave.
type sink struct {
	mu  sync.Mutex
	out io.Writer
}

// Logger writes one JSON object per line.
type Logger struct {
	sink   *sink
	level  Level
	fields Fields
}

// New creates a Logger writing to stdout at info level.
func New() *Logger {
	return &Logger{
		sink:  &sink{out: os.Stdout},
		level: LevelInfo,
	}
}

// SetOutput sets the output writer for the logger and its children.
func (l *Logger) SetOutput(w io.Writer) *Logger {
	l.sink.mu.Lock()
	l.sink.out = w
	l.sink.mu.Unlock()
	return l
}

// SetLevel sets the minimum level emitted by this logger.
func (l *Logger) SetLevel(level Level) *Logger {
	l.level = level
	return l
}

func (l *Logger) Level() Level {
	return l.level
}

// WithField returns a child logger carrying an additional field.
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(Fields{key: value})
}

// WithFields returns a child logger carrying additional fields.
func (l *Logger) WithFields(fields Fields) *Logger {
	merged := make(Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sink: l.sink, level: l.level, fields: merged}
}

func (l *Logger) Debug(msg string, fields ...Fields) { l.write(LevelDebug, msg, fields) }
func (l *Logger) Info(msg string, fields ...Fields)  { l.write(LevelInfo, msg, fields) }
func (l *Logger) Warn(msg string, fields ...Fields)  { l.write(LevelWarn, msg, fields) }
func (l *Logger) Error(msg string, fields ...Fields) { l.write(LevelError, msg, fields) }

func (l *Logger) write(level Level, msg string, extra []Fields) {
	if level < l.level {
		return
	}

	e := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   msg,
	}
	if n := len(l.fields) + len(extra); n > 0 {
		all := make(Fields, n)
		for k, v := range l.fields {
			all[k] = v
		}
		for _, f := range extra {
			for k, v := range f {
				all[k] = v
			}
		}
		if len(all) > 0 {
			e.Fields = all
		}
	}

	data, err := json.Marshal(e)
	if err != nil {
		data = []byte(e.Timestamp + " " + e.Level + " " + msg)
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.out.Write(append(data, '\n'))
}

type ctxKey struct{}

// WithContext stores logger in ctx.
func WithContext(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, logger)
}

// FromContext returns the logger stored in ctx, or Default.
func FromContext(ctx context.Context) *Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*Logger); ok && l != nil {
			return l
		}
	}
	return Default
}

// Default is the process-wide logger used by the package-level helpers.
var Default = New()

// SetDefaultLevel sets the level for the default logger.
func SetDefaultLevel(level Level) {
	Default.SetLevel(level)
}

func Debug(msg string, fields ...Fields) { Default.Debug(msg, fields...) }
func Info(msg string, fields ...Fields)  { Default.Info(msg, fields...) }
func Warn(msg string, fields ...Fields)  { Default.Warn(msg, fields...) }
func Error(msg string, fields ...Fields) { Default.Error(msg, fields...) }
