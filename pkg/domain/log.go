package domain

import (
	"log/slog"
	"time"
)

// LogEntry is one line of a node's append-only log.
type LogEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     slog.Level     `json:"level"`
	Message   string         `json:"message"`
	Attrs     map[string]any `json:"attrs,omitempty"`
}

// NewLogEntry stamps a log line with the current time.
func NewLogEntry(level slog.Level, msg string, attrs map[string]any) LogEntry {
	return LogEntry{
		Timestamp: time.Now().UTC(),
		Level:     level,
		Message:   msg,
		Attrs:     attrs,
	}
}
