// internal/utils/logger.go
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the logging level
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	FATAL
)

// Logger writes leveled lines with optional fields. Child loggers created by
// WithComponent share the parent's sink.
type Logger struct {
	sink      *logSink
	component string
	fields    map[string]interface{}
}

type logSink struct {
	mu      sync.Mutex
	file    *os.File
	out     io.Writer
	level   LogLevel
	enabled bool
}

var (
	globalLogger *Logger
	loggerOnce   sync.Once
)

// GetLogger returns the global logger instance
func GetLogger() *Logger {
	loggerOnce.Do(func() {
		globalLogger = &Logger{
			sink: &logSink{
				out:     os.Stdout,
				level:   INFO,
				enabled: true,
			},
		}
	})
	return globalLogger
}

// NewLogger builds a standalone logger writing to out. Tests use it to
// capture output.
func NewLogger(out io.Writer, level LogLevel) *Logger {
	return &Logger{
		sink: &logSink{out: out, level: level, enabled: true},
	}
}

// InitLogger additionally appends every line to logFile
func InitLogger(logFile string) error {
	logger := GetLogger()

	if err := os.MkdirAll(filepath.Dir(logFile), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logger.sink.mu.Lock()
	defer logger.sink.mu.Unlock()

	if logger.sink.file != nil {
		logger.sink.file.Close()
	}
	logger.sink.file = file
	return nil
}

// Close releases the log file, if any
func (l *Logger) Close() error {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	if l.sink.file == nil {
		return nil
	}
	err := l.sink.file.Close()
	l.sink.file = nil
	return err
}

// SetLogLevel sets the minimum level for logging
func (l *Logger) SetLogLevel(level LogLevel) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.level = level
}

// Enable enables or disables logging
func (l *Logger) Enable(enabled bool) {
	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()
	l.sink.enabled = enabled
}

// WithComponent returns a child logger that tags every line with name
func (l *Logger) WithComponent(name string) *Logger {
	return &Logger{sink: l.sink, component: name, fields: l.fields}
}

// WithFields returns a child logger that adds fields to every line
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	merged := make(map[string]interface{}, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &Logger{sink: l.sink, component: l.component, fields: merged}
}

func (l *Logger) log(level LogLevel, message string, fields map[string]interface{}) {
	l.sink.mu.Lock()
	enabled, minLevel := l.sink.enabled, l.sink.level
	l.sink.mu.Unlock()
	if !enabled || level < minLevel {
		return
	}

	// skip log() and the exported wrapper
	pc, file, line, ok := runtime.Caller(2)
	funcName := ""
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
			if idx := strings.LastIndex(funcName, "/"); idx >= 0 {
				funcName = funcName[idx+1:]
			}
		}
		file = filepath.Base(file)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s %s:%d:%s",
		levelToString(level),
		time.Now().Format("2006-01-02 15:04:05.000"),
		file, line, funcName)
	if l.component != "" {
		fmt.Fprintf(&b, " (%s)", l.component)
	}
	b.WriteString(" - ")
	b.WriteString(message)

	all := l.fields
	if len(fields) > 0 {
		all = make(map[string]interface{}, len(l.fields)+len(fields))
		for k, v := range l.fields {
			all[k] = v
		}
		for k, v := range fields {
			all[k] = v
		}
	}
	if len(all) > 0 {
		keys := make([]string, 0, len(all))
		for k := range all {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" |")
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, all[k])
		}
	}
	b.WriteString("\n")
	logLine := b.String()

	l.sink.mu.Lock()
	defer l.sink.mu.Unlock()

	if l.sink.file != nil {
		l.sink.file.WriteString(logLine)
	}
	if l.sink.out != nil {
		io.WriteString(l.sink.out, logLine)
	}

	if level == FATAL {
		os.Exit(1)
	}
}

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel maps a level name to a LogLevel, defaulting to INFO
func ParseLogLevel(name string) LogLevel {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return DEBUG
	case "WARN", "WARNING":
		return WARNING
	case "ERROR":
		return ERROR
	default:
		return INFO
	}
}

func (l *Logger) Debug(message string, fields map[string]interface{}) {
	l.log(DEBUG, message, fields)
}

func (l *Logger) Info(message string, fields map[string]interface{}) {
	l.log(INFO, message, fields)
}

func (l *Logger) Warn(message string, fields map[string]interface{}) {
	l.log(WARNING, message, fields)
}

func (l *Logger) Error(message string, fields map[string]interface{}) {
	l.log(ERROR, message, fields)
}

// Fatal logs and exits the process
func (l *Logger) Fatal(message string, fields map[string]interface{}) {
	l.log(FATAL, message, fields)
}
