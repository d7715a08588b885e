// Package logger is the service's category logger: short colored lines on
// the terminal and one JSON object per line in a daily file.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

type levelStyle struct {
	name     string
	level    *color.Color
	category *color.Color
}

var styles = map[LogLevel]levelStyle{
	DEBUG: {"DEBUG", color.New(color.FgCyan), color.New(color.FgCyan, color.Bold)},
	INFO:  {"INFO", color.New(color.FgGreen), color.New(color.FgGreen, color.Bold)},
	WARN:  {"WARN", color.New(color.FgYellow), color.New(color.FgYellow, color.Bold)},
	ERROR: {"ERROR", color.New(color.FgRed), color.New(color.FgRed, color.Bold)},
	FATAL: {"FATAL", color.New(color.FgRed, color.Bold), color.New(color.FgRed, color.Bold)},
}

var (
	clockColor  = color.New(color.FgBlue)
	callerColor = color.New(color.FgMagenta)
)

func (l LogLevel) String() string {
	if s, ok := styles[l]; ok {
		return s.name
	}
	return "INFO"
}

// LogEntry is the JSON shape written to the log file.
type LogEntry struct {
	Timestamp string `json:"timestamp"`
	Service   string `json:"service,omitempty"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Message   string `json:"message"`
	File      string `json:"file,omitempty"`
	Line      int    `json:"line,omitempty"`
}

type Logger struct {
	service  string
	dir      string
	day      string
	logFile  *os.File
	out      io.Writer
	colored  bool
	minLevel LogLevel
	mu       sync.Mutex
}

// NewLogger writes colored lines to stdout and JSON lines to
// <dir>/<service>-YYYY-MM-DD.log. The file rolls over at midnight, so a
// gig running past 00:00 keeps logging into the new day's file.
func NewLogger(dir, service string) *Logger {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Fatal("Failed to create logs directory:", err)
	}

	l := &Logger{
		service:  service,
		dir:      dir,
		out:      os.Stdout,
		colored:  true,
		minLevel: parseLevel(os.Getenv("LOG_LEVEL")),
	}
	if err := l.rollLocked(time.Now()); err != nil {
		log.Fatal("Failed to create log file:", err)
	}
	l.Info("LOGGER", fmt.Sprintf("%s logging to %s at level %s", service, l.logFile.Name(), l.minLevel))
	return l
}

// NewDiscard returns a logger that drops everything. Used by tests.
func NewDiscard() *Logger {
	return &Logger{out: io.Discard, minLevel: DEBUG}
}

// NewWriter logs plain lines to w only, without a log file.
func NewWriter(w io.Writer) *Logger {
	return &Logger{out: w, minLevel: DEBUG}
}

func parseLevel(s string) LogLevel {
	for level, style := range styles {
		if strings.EqualFold(s, style.name) && level != FATAL {
			return level
		}
	}
	return INFO
}

// rollLocked opens the file for now's date if it is not already open.
func (l *Logger) rollLocked(now time.Time) error {
	day := now.Format("2006-01-02")
	if l.logFile != nil && day == l.day {
		return nil
	}
	name := filepath.Join(l.dir, fmt.Sprintf("%s-%s.log", l.service, day))
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		return err
	}
	if l.logFile != nil {
		l.logFile.Close()
	}
	l.logFile, l.day = f, day
	return nil
}

func (l *Logger) log(level LogLevel, category, message string) {
	if l == nil || level < l.minLevel {
		return
	}
	now := time.Now()
	entry := LogEntry{
		Timestamp: now.UTC().Format("2006-01-02T15:04:05.000Z"),
		Service:   l.service,
		Level:     level.String(),
		Category:  strings.ToUpper(category),
		Message:   message,
	}
	if _, file, line, ok := runtime.Caller(2); ok {
		entry.File, entry.Line = filepath.Base(file), line
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprint(l.out, l.terminalLine(level, entry))
	if l.dir == "" {
		return
	}
	if err := l.rollLocked(now); err != nil {
		fmt.Fprintf(os.Stderr, "logger: rolling log file: %v\n", err)
		return
	}
	if data, err := json.Marshal(entry); err == nil {
		l.logFile.Write(append(data, '\n'))
	}
}

func (l *Logger) terminalLine(level LogLevel, e LogEntry) string {
	clock := e.Timestamp[11:19]
	if !l.colored {
		return fmt.Sprintf("%s %-5s [%-10s] %s\n", clock, e.Level, e.Category, e.Message)
	}
	style := styles[level]
	caller := ""
	if e.File != "" && e.Line > 0 {
		caller = callerColor.Sprintf(" (%s:%d)", e.File, e.Line)
	}
	return fmt.Sprintf("%s %s %s %s%s\n",
		clockColor.Sprint(clock),
		style.level.Sprintf("%-5s", e.Level),
		style.category.Sprintf("[%-10s]", e.Category),
		e.Message, caller)
}

func (l *Logger) Debug(category, message string) { l.log(DEBUG, category, message) }
func (l *Logger) Info(category, message string)  { l.log(INFO, category, message) }
func (l *Logger) Warn(category, message string)  { l.log(WARN, category, message) }
func (l *Logger) Error(category, message string) { l.log(ERROR, category, message) }

func (l *Logger) Fatal(category, message string) {
	l.log(FATAL, category, message)
	os.Exit(1)
}

// Component helpers keep the message shapes consistent across packages.

func (l *Logger) LogGig(action, gigID, message string) {
	l.Info("GIG", fmt.Sprintf("[%s] %s - %s", action, gigID, message))
}

func (l *Logger) LogRequest(action, gigID, requestID string) {
	l.Info("REQUEST", fmt.Sprintf("[%s] gig=%s request=%s", action, gigID, requestID))
}

func (l *Logger) LogAPI(method, path, status, duration string) {
	l.Info("API", fmt.Sprintf("%s %s - %s (%s)", method, path, status, duration))
}

func (l *Logger) LogKafka(action, topic, message string) {
	l.Info("KAFKA", fmt.Sprintf("[%s] %s - %s", action, topic, message))
}

func (l *Logger) LogProcess(processName, message string) {
	l.Info("PROCESS", fmt.Sprintf("[%s] %s", processName, message))
}

func (l *Logger) LogDatabase(operation, table, message string) {
	l.Info("DATABASE", fmt.Sprintf("[%s] %s - %s", operation, table, message))
}

func (l *Logger) LogSecurity(event, message string) {
	l.Warn("SECURITY", fmt.Sprintf("[%s] %s", event, message))
}

func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logFile != nil {
		l.logFile.Close()
		l.logFile = nil
	}
}
