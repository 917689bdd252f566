// Package logging provides structured logging with multiple output formats and levels.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

func (l Level) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(name string) Level {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

// Categories used across the storefront engine.
const (
	CategorySession  = "session"
	CategoryRouter   = "router"
	CategoryAuth     = "auth"
	CategoryContent  = "content"
	CategoryServer   = "server"
	CategoryProfiles = "profiles"
)

// Entry represents a single log entry with structured fields.
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Level     string         `json:"level"`
	Source    string         `json:"source,omitempty"`
	Category  string         `json:"category"`
	Message   string         `json:"message"`
	Fields    map[string]any `json:"fields,omitempty"`
	Error     string         `json:"error,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Duration  *int64         `json:"duration_ms,omitempty"`
}

// Logger is a structured logger that writes to multiple outputs.
type Logger struct {
	mu          sync.RWMutex
	minLevel    Level
	writers     []io.Writer
	source      string
	subscribers []chan<- Entry
	now         func() time.Time
}

// New creates a Logger that writes JSON lines to each writer.
func New(source string, minLevel Level, writers ...io.Writer) *Logger {
	return &Logger{
		minLevel:    minLevel,
		writers:     writers,
		source:      source,
		subscribers: make([]chan<- Entry, 0),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Discard returns a logger with no outputs; subscribers still receive entries.
func Discard() *Logger {
	return New("", DEBUG)
}

// Subscribe adds a channel to receive log entries in real-time.
func (l *Logger) Subscribe(ch chan<- Entry) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subscribers = append(l.subscribers, ch)

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.subscribers {
			if sub == ch {
				l.subscribers = append(l.subscribers[:i], l.subscribers[i+1:]...)
				break
			}
		}
	}
}

// Log writes a log entry at the specified level.
func (l *Logger) Log(level Level, category, message string, fields map[string]any) {
	l.emit(level, category, message, nil, fields)
}

// Debug logs a debug message.
func (l *Logger) Debug(category, message string, fields map[string]any) {
	l.emit(DEBUG, category, message, nil, fields)
}

// Info logs an info message.
func (l *Logger) Info(category, message string, fields map[string]any) {
	l.emit(INFO, category, message, nil, fields)
}

// Warn logs a warning message.
func (l *Logger) Warn(category, message string, fields map[string]any) {
	l.emit(WARN, category, message, nil, fields)
}

// Error logs an error message.
func (l *Logger) Error(category, message string, err error, fields map[string]any) {
	l.emit(ERROR, category, message, err, fields)
}

func (l *Logger) emit(level Level, category, message string, err error, fields map[string]any) {
	if l == nil || level < l.minLevel {
		return
	}
	entry := Entry{
		Timestamp: l.now(),
		Level:     level.String(),
		Source:    l.source,
		Category:  category,
		Message:   message,
		Fields:    fields,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	l.write(entry)
}

func (l *Logger) write(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to marshal log entry: %v\n", err)
		return
	}
	data = append(data, '\n')

	l.mu.RLock()
	writers := l.writers
	subscribersCopy := make([]chan<- Entry, len(l.subscribers))
	copy(subscribersCopy, l.subscribers)
	l.mu.RUnlock()

	for _, w := range writers {
		_, _ = w.Write(data)
	}

	// Subscribers never block the caller.
	for _, ch := range subscribersCopy {
		select {
		case ch <- entry:
		default:
		}
	}
}

// LogContext carries a category and fields across several log calls.
type LogContext struct {
	logger   *Logger
	category string
	fields   map[string]any
}

// With creates a logging context bound to category.
func (l *Logger) With(category string) *LogContext {
	return &LogContext{logger: l, category: category}
}

// WithField adds a field to this context.
func (c *LogContext) WithField(key string, value any) *LogContext {
	if c.fields == nil {
		c.fields = make(map[string]any)
	}
	c.fields[key] = value
	return c
}

// WithFields adds multiple fields to this context.
func (c *LogContext) WithFields(fields map[string]any) *LogContext {
	for k, v := range fields {
		c.WithField(k, v)
	}
	return c
}

// Debug logs a debug message with the context's fields.
func (c *LogContext) Debug(message string) {
	c.logger.emit(DEBUG, c.category, message, nil, c.fields)
}

// Info logs an info message with the context's fields.
func (c *LogContext) Info(message string) {
	c.logger.emit(INFO, c.category, message, nil, c.fields)
}

// Warn logs a warning message with the context's fields.
func (c *LogContext) Warn(message string) {
	c.logger.emit(WARN, c.category, message, nil, c.fields)
}

// Error logs an error message with the context's fields.
func (c *LogContext) Error(message string, err error) {
	c.logger.emit(ERROR, c.category, message, err, c.fields)
}
