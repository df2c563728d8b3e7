package logging

import (
	"time"
)

// Field is one key/value pair of a log line
type Field struct {
	Key   string
	Value any
}

func String(key, value string) Field    { return Field{Key: key, Value: value} }
func Int(key string, value int) Field   { return Field{Key: key, Value: value} }
func Bool(key string, value bool) Field { return Field{Key: key, Value: value} }
func Any(key string, value any) Field   { return Field{Key: key, Value: value} }

// Duration records d in milliseconds under key_ms
func Duration(key string, d time.Duration) Field {
	return Field{Key: key + "_ms", Value: float64(d.Microseconds()) / 1000}
}

// Error records err's message under "error". A nil error is recorded as null.
func Error(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

func Component(name string) Field { return String("component", name) }
func Operation(op string) Field   { return String("operation", op) }
func Tool(name string) Field      { return String("tool", name) }
func SnapshotID(id string) Field  { return String("snapshot_id", id) }
func Source(name string) Field    { return String("source", name) }
func RequestID(id string) Field   { return String("request_id", id) }
func Count(n int) Field           { return Int("count", n) }

// Latency records how long an operation took as latency_ms
func Latency(d time.Duration) Field { return Duration("latency", d) }
