// Package logging writes structured JSON log lines, one object per line.
// Binaries log to stderr; stdout is reserved for the stdio tool transport.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LevelEnv overrides the configured level when set
const LevelEnv = "ATTACKGRAPH_LOG_LEVEL"

// Logger is implemented by JSONLogger and NopLogger
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	// With returns a child logger that adds fields to every line
	With(fields ...Field) Logger
	SetLevel(level Level)
	GetLevel() Level
}

// LogEntry is the shape of one encoded line
type LogEntry struct {
	Time    string         `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"msg"`
	Fields  map[string]any `json:"fields,omitempty"`
}

type sink struct {
	mu sync.Mutex
	w  io.Writer
}

// JSONLogger shares its writer and level with every child made by With
type JSONLogger struct {
	sink  *sink
	level *atomic.Int32
	base  []Field
}

func NewJSONLogger(w io.Writer, level Level) *JSONLogger {
	l := &JSONLogger{sink: &sink{w: w}, level: new(atomic.Int32)}
	l.level.Store(int32(level))
	return l
}

// NewLogger creates a stderr logger from a level name; LevelEnv wins over
// the argument.
func NewLogger(level string) *JSONLogger {
	if env := os.Getenv(LevelEnv); env != "" {
		level = env
	}
	return NewJSONLogger(os.Stderr, ParseLevel(level))
}

func (l *JSONLogger) Debug(msg string, fields ...Field) { l.write(DebugLevel, msg, fields) }
func (l *JSONLogger) Info(msg string, fields ...Field)  { l.write(InfoLevel, msg, fields) }
func (l *JSONLogger) Warn(msg string, fields ...Field)  { l.write(WarnLevel, msg, fields) }
func (l *JSONLogger) Error(msg string, fields ...Field) { l.write(ErrorLevel, msg, fields) }

func (l *JSONLogger) With(fields ...Field) Logger {
	base := make([]Field, 0, len(l.base)+len(fields))
	base = append(append(base, l.base...), fields...)
	return &JSONLogger{sink: l.sink, level: l.level, base: base}
}

func (l *JSONLogger) SetLevel(level Level) { l.level.Store(int32(level)) }
func (l *JSONLogger) GetLevel() Level      { return Level(l.level.Load()) }

// write encodes one line. Later fields override earlier ones with the same
// key. Values that cannot be encoded are logged with their %v form.
func (l *JSONLogger) write(level Level, msg string, fields []Field) {
	if level < l.GetLevel() {
		return
	}

	entry := LogEntry{
		Time:    time.Now().UTC().Format(time.RFC3339Nano),
		Level:   level.String(),
		Message: msg,
	}
	if n := len(l.base) + len(fields); n > 0 {
		entry.Fields = make(map[string]any, n)
		for _, f := range l.base {
			entry.Fields[f.Key] = f.Value
		}
		for _, f := range fields {
			entry.Fields[f.Key] = f.Value
		}
	}

	data, err := json.Marshal(entry)
	if err != nil {
		for k, v := range entry.Fields {
			entry.Fields[k] = fmt.Sprintf("%v", v)
		}
		if data, err = json.Marshal(entry); err != nil {
			return
		}
	}

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	_, _ = l.sink.w.Write(append(data, '\n'))
}

// NopLogger discards everything
type NopLogger struct{}

func NewNopLogger() Logger { return NopLogger{} }

func (NopLogger) Debug(string, ...Field) {}
func (NopLogger) Info(string, ...Field)  {}
func (NopLogger) Warn(string, ...Field)  {}
func (NopLogger) Error(string, ...Field) {}
func (n NopLogger) With(...Field) Logger { return n }
func (NopLogger) SetLevel(Level)         {}
func (NopLogger) GetLevel() Level        { return InfoLevel }

type holder struct{ Logger }

var defaultLogger atomic.Pointer[holder]

// DefaultLogger returns the process-wide logger, an info-level stderr logger
// until SetDefaultLogger is called.
func DefaultLogger() Logger {
	if h := defaultLogger.Load(); h != nil {
		return h.Logger
	}
	defaultLogger.CompareAndSwap(nil, &holder{NewLogger("info")})
	return defaultLogger.Load().Logger
}

func SetDefaultLogger(logger Logger) {
	defaultLogger.Store(&holder{logger})
}

// Timer logs an operation together with its latency
type Timer struct {
	logger Logger
	msg    string
	start  time.Time
	fields []Field
}

func StartTimer(logger Logger, msg string, fields ...Field) *Timer {
	return &Timer{logger: logger, msg: msg, start: time.Now(), fields: fields}
}

func (t *Timer) Elapsed() time.Duration { return time.Since(t.start) }

// End logs at info level
func (t *Timer) End(fields ...Field) {
	t.logger.Info(t.msg, t.collect(fields, Latency(t.Elapsed()))...)
}

// EndError logs at error level with err attached
func (t *Timer) EndError(err error, fields ...Field) {
	t.logger.Error(t.msg, t.collect(fields, Latency(t.Elapsed()), Error(err))...)
}

func (t *Timer) collect(fields []Field, extra ...Field) []Field {
	all := make([]Field, 0, len(t.fields)+len(fields)+len(extra))
	return append(append(append(all, t.fields...), fields...), extra...)
}
