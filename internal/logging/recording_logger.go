package logging

import (
	"fmt"
	"strings"
	"sync"
)

// Level identifies which Logger method produced an Entry.
type Level string

const (
	LevelVerbose Level = "verbose"
	LevelInfo    Level = "info"
	LevelError   Level = "error"
)

// Entry is one formatted message.
type Entry struct {
	Level   Level
	Message string
}

// RecordingLogger keeps every message in memory, verbose ones included.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []Entry
}

// NewRecordingLogger creates an empty RecordingLogger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

func (l *RecordingLogger) Verbose(format string, args ...interface{}) {
	l.add(LevelVerbose, format, args)
}

func (l *RecordingLogger) Info(format string, args ...interface{}) {
	l.add(LevelInfo, format, args)
}

func (l *RecordingLogger) Error(format string, args ...interface{}) {
	l.add(LevelError, format, args)
}

func (l *RecordingLogger) add(level Level, format string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Entries returns a copy of all recorded entries.
func (l *RecordingLogger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.entries...)
}

// Contains reports whether any message at level contains substr.
func (l *RecordingLogger) Contains(level Level, substr string) bool {
	for _, e := range l.Entries() {
		if e.Level == level && strings.Contains(e.Message, substr) {
			return true
		}
	}
	return false
}
