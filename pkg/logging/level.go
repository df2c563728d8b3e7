package logging

import "strings"

// Level orders log severities
type Level int32

const (
	// DebugLevel carries per-record load warnings and per-request access lines
	DebugLevel Level = iota
	InfoLevel
	// WarnLevel marks recoverable data problems such as dropped relationships
	WarnLevel
	// ErrorLevel marks failed loads and failed tool calls
	ErrorLevel
)

var levelNames = [...]string{"debug", "info", "warn", "error"}

func (l Level) String() string {
	if l < DebugLevel || l > ErrorLevel {
		return "unknown"
	}
	return levelNames[l]
}

// ParseLevel reads a level name as written in config files. Unknown names
// yield InfoLevel.
func ParseLevel(s string) Level {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "warning" {
		return WarnLevel
	}
	for i, n := range levelNames {
		if n == name {
			return Level(i)
		}
	}
	return InfoLevel
}
