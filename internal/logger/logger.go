// Package logger writes levelled diagnostics to stderr.
//
// Errors are always written. Debug, Info, Warn and section headers appear
// only with --verbose. The long-running commands (serve, watch) prefix
// each line with a timestamp.
package logger

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Level orders messages by severity.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var tags = [...]string{
	LevelDebug: "[DEBUG] ",
	LevelInfo:  "[INFO] ",
	LevelWarn:  "[WARN] ",
	LevelError: "[ERROR] ",
}

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	mu         sync.RWMutex
	threshold            = LevelError
	timestamps bool
	output     io.Writer = os.Stderr
	now                  = time.Now
)

// SetVerbose lowers the threshold to Debug, or raises it back to Error.
func SetVerbose(v bool) {
	mu.Lock()
	defer mu.Unlock()
	threshold = LevelError
	if v {
		threshold = LevelDebug
	}
}

func IsVerbose() bool {
	mu.RLock()
	defer mu.RUnlock()
	return threshold == LevelDebug
}

// SetTimestamps toggles the RFC 3339 prefix.
func SetTimestamps(enabled bool) {
	mu.Lock()
	defer mu.Unlock()
	timestamps = enabled
}

// SetOutput redirects logging, for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	output = w
}

func Debug(format string, args ...any) { write(LevelDebug, format, args) }
func Info(format string, args ...any)  { write(LevelInfo, format, args) }
func Warn(format string, args ...any)  { write(LevelWarn, format, args) }
func Error(format string, args ...any) { write(LevelError, format, args) }

// Section separates phases of verbose output.
func Section(name string) {
	mu.RLock()
	defer mu.RUnlock()
	if threshold == LevelDebug {
		fmt.Fprintf(output, "\n=== %s ===\n", name)
	}
}

func write(level Level, format string, args []any) {
	mu.RLock()
	defer mu.RUnlock()
	if level < threshold {
		return
	}
	line := tags[level] + fmt.Sprintf(format, args...) + "\n"
	if timestamps {
		line = now().Format(timestampFormat) + " " + line
	}
	_, _ = io.WriteString(output, line)
}
