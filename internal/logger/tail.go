package logger

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

const defaultTailSize = 200

// LogEntry represents a parsed log entry kept for the recent-logs endpoint.
type LogEntry struct {
	Timestamp string         `json:"timestamp"`
	Level     string         `json:"level"`
	Component string         `json:"component,omitempty"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Tail is a zerolog.LevelWriter that keeps the most recent entries at or above
// a minimum level.
type Tail struct {
	buffer   *RingBuffer[LogEntry]
	minLevel zerolog.Level
}

// NewTail creates a tail holding up to size entries.
func NewTail(size int, minLevel zerolog.Level) *Tail {
	if size <= 0 {
		size = defaultTailSize
	}
	return &Tail{
		buffer:   NewRingBuffer[LogEntry](size),
		minLevel: minLevel,
	}
}

// Write implements io.Writer. The level is read from the JSON entry.
func (t *Tail) Write(p []byte) (int, error) {
	entry, err := parseLogEntry(p)
	if err != nil {
		return len(p), nil //nolint:nilerr // Silently ignore malformed log entries
	}
	if level, err := zerolog.ParseLevel(entry.Level); err == nil && level >= t.minLevel {
		t.buffer.Push(entry)
	}
	return len(p), nil
}

// WriteLevel implements zerolog.LevelWriter and skips parsing below the minimum level.
func (t *Tail) WriteLevel(level zerolog.Level, p []byte) (int, error) {
	if level < t.minLevel {
		return len(p), nil
	}
	entry, err := parseLogEntry(p)
	if err != nil {
		return len(p), nil //nolint:nilerr
	}
	t.buffer.Push(entry)
	return len(p), nil
}

// Recent returns up to limit entries, oldest first. A limit <= 0 returns all.
func (t *Tail) Recent(limit int) []LogEntry {
	return t.buffer.Last(limit)
}

// parseLogEntry parses a zerolog JSON entry into a LogEntry.
func parseLogEntry(data []byte) (LogEntry, error) {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return LogEntry{}, err
	}

	entry := LogEntry{}

	if ts, ok := raw[zerolog.TimestampFieldName].(string); ok {
		entry.Timestamp = ts
		delete(raw, zerolog.TimestampFieldName)
	}
	if level, ok := raw[zerolog.LevelFieldName].(string); ok {
		entry.Level = level
		delete(raw, zerolog.LevelFieldName)
	}
	if component, ok := raw["component"].(string); ok {
		entry.Component = component
		delete(raw, "component")
	}
	if msg, ok := raw[zerolog.MessageFieldName].(string); ok {
		entry.Message = msg
		delete(raw, zerolog.MessageFieldName)
	}

	if len(raw) > 0 {
		entry.Fields = raw
	}
	return entry, nil
}
