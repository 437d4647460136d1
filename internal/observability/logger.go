package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DebugLevel LogLevel = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var levelNames = map[LogLevel]string{
	DebugLevel: "DEBUG",
	InfoLevel:  "INFO",
	WarnLevel:  "WARN",
	ErrorLevel: "ERROR",
}

// Observer is what the scan components log through. The CLI passes one
// down explicitly; nothing in this module reads a global logger.
type Observer interface {
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	InfoWithFields(msg string, fields map[string]interface{})
	WarnWithFields(msg string, fields map[string]interface{})
	ErrorWithFields(msg string, fields map[string]interface{})
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Service   string                 `json:"service"`
	Version   string                 `json:"version"`
	Host      string                 `json:"host,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// Logger provides structured logging capabilities
type Logger struct {
	mu       *sync.Mutex
	level    LogLevel
	output   io.Writer
	fields   map[string]interface{}
	service  string
	version  string
	hostname string
	encoder  LogEncoder
	caller   bool
}

// LogEncoder handles encoding of log entries
type LogEncoder interface {
	Encode(entry *LogEntry) ([]byte, error)
}

// JSONEncoder encodes log entries as JSON
type JSONEncoder struct {
	pretty bool
}

// NewJSONEncoder creates a new JSON encoder
func NewJSONEncoder(pretty bool) *JSONEncoder {
	return &JSONEncoder{pretty: pretty}
}

// Encode encodes a log entry to JSON
func (e *JSONEncoder) Encode(entry *LogEntry) ([]byte, error) {
	if e.pretty {
		return json.MarshalIndent(entry, "", "  ")
	}
	return json.Marshal(entry)
}

// TextEncoder writes one human readable line per entry:
// 2006-01-02T15:04:05Z INFO  message key=value ...
type TextEncoder struct{}

// Encode encodes a log entry as a single text line
func (TextEncoder) Encode(entry *LogEntry) ([]byte, error) {
	var b strings.Builder
	b.WriteString(entry.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%-5s", entry.Level))
	b.WriteString(" ")
	b.WriteString(entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(fmt.Sprintf(" %s=%v", k, entry.Fields[k]))
	}
	return []byte(b.String()), nil
}

// LoggerConfig contains logger configuration
type LoggerConfig struct {
	Level   LogLevel
	Output  io.Writer
	Service string
	Version string
	Encoder LogEncoder
	// Caller adds file:line of the log call to each entry
	Caller bool
}

// NewLogger creates a new logger instance
func NewLogger(config LoggerConfig) *Logger {
	hostname, _ := os.Hostname()

	if config.Output == nil {
		config.Output = os.Stderr
	}

	if config.Encoder == nil {
		config.Encoder = NewJSONEncoder(false)
	}

	return &Logger{
		mu:       &sync.Mutex{},
		level:    config.Level,
		output:   config.Output,
		fields:   make(map[string]interface{}),
		service:  config.Service,
		version:  config.Version,
		hostname: hostname,
		encoder:  config.Encoder,
		caller:   config.Caller,
	}
}

// WithField returns a new logger with an additional field
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new logger with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	newFields := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		newFields[k] = v
	}
	for k, v := range fields {
		newFields[k] = v
	}

	child := *l
	child.fields = newFields
	return &child
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	entry := &LogEntry{
		Timestamp: time.Now(),
		Level:     levelNames[level],
		Message:   msg,
		Fields:    make(map[string]interface{}, len(l.fields)+len(fields)),
		Service:   l.service,
		Version:   l.version,
		Host:      l.hostname,
	}

	for k, v := range l.fields {
		entry.Fields[k] = v
	}
	for k, v := range fields {
		entry.Fields[k] = v
	}

	if l.caller {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	data, err := l.encoder.Encode(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to encode log entry: %v\n", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, _ = l.output.Write(data)
	_, _ = l.output.Write([]byte("\n"))
}

// Debug logs a debug message
func (l *Logger) Debug(msg string) {
	l.log(DebugLevel, msg, nil)
}

// Debugf logs a formatted debug message
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.log(DebugLevel, fmt.Sprintf(format, args...), nil)
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.log(InfoLevel, msg, nil)
}

// Infof logs a formatted info message
func (l *Logger) Infof(format string, args ...interface{}) {
	l.log(InfoLevel, fmt.Sprintf(format, args...), nil)
}

// InfoWithFields logs an info message with fields
func (l *Logger) InfoWithFields(msg string, fields map[string]interface{}) {
	l.log(InfoLevel, msg, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.log(WarnLevel, msg, nil)
}

// Warnf logs a formatted warning message
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.log(WarnLevel, fmt.Sprintf(format, args...), nil)
}

// WarnWithFields logs a warning message with fields
func (l *Logger) WarnWithFields(msg string, fields map[string]interface{}) {
	l.log(WarnLevel, msg, fields)
}

// Error logs an error message
func (l *Logger) Error(msg string) {
	l.log(ErrorLevel, msg, nil)
}

// Errorf logs a formatted error message
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.log(ErrorLevel, fmt.Sprintf(format, args...), nil)
}

// ErrorWithFields logs an error message with fields
func (l *Logger) ErrorWithFields(msg string, fields map[string]interface{}) {
	l.log(ErrorLevel, msg, fields)
}

// SetLevel sets the minimum log level
func (l *Logger) SetLevel(level LogLevel) {
	l.level = level
}

// LogLevelFromString converts a string to LogLevel
func LogLevelFromString(level string) LogLevel {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return DebugLevel
	case "INFO":
		return InfoLevel
	case "WARN", "WARNING":
		return WarnLevel
	case "ERROR":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// EncoderFromString picks an encoder by name; anything but "text" is JSON.
func EncoderFromString(format string) LogEncoder {
	if strings.EqualFold(format, "text") {
		return TextEncoder{}
	}
	return NewJSONEncoder(false)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Debugf(string, ...interface{}) {}
func (Nop) Infof(string, ...interface{}) {}
func (Nop) Warnf(string, ...interface{}) {}
func (Nop) Errorf(string, ...interface{}) {}
func (Nop) InfoWithFields(string, map[string]interface{}) {}
func (Nop) WarnWithFields(string, map[string]interface{}) {}
func (Nop) ErrorWithFields(string, map[string]interface{}) {}

var _ Observer = (*Logger)(nil)
var _ Observer = Nop{}
