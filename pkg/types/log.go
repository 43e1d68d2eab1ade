package types

import "strings"

// LogLevel is the severity of a diagnostic log entry.
type LogLevel string

// Log levels.
const (
	LogDebug LogLevel = "DEBUG"
	LogInfo  LogLevel = "INFO"
	LogWarn  LogLevel = "WARN"
	LogError LogLevel = "ERROR"
)

// ParseLogLevel resolves a level name case-insensitively.
func ParseLogLevel(s string) (LogLevel, bool) {
	switch LogLevel(strings.ToUpper(s)) {
	case LogDebug:
		return LogDebug, true
	case LogInfo:
		return LogInfo, true
	case LogWarn, "WARNING":
		return LogWarn, true
	case LogError:
		return LogError, true
	}
	return "", false
}

// Log is an append-only diagnostic entry. AutoID is assigned by the store.
type Log struct {
	AutoID       int64    `json:"autoId,omitempty"`
	Timestamp    int64    `json:"timestamp"`
	LogLevel     LogLevel `json:"logLevel"`
	Label        string   `json:"label"`
	Details      any      `json:"details,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
	StackTrace   string   `json:"stackTrace,omitempty"`
}

// NewLog builds a log entry stamped with the current time. When details is
// an error, its message is copied into ErrorMessage.
func NewLog(level LogLevel, label string, details any) *Log {
	l := &Log{
		Timestamp: NowMillis(),
		LogLevel:  level,
		Label:     label,
	}
	if err, ok := details.(error); ok {
		l.ErrorMessage = err.Error()
		return l
	}
	l.Details = details
	return l
}
