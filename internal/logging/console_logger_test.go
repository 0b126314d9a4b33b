package logging

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"testing"
)

func TestConsoleLogger_Verbose_WhenEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, true)

	logger.Verbose("staged %d rows into %s", 3, "temp_x")

	expected := "[VERBOSE] staged 3 rows into temp_x\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestConsoleLogger_Verbose_WhenDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, false)

	logger.Verbose("staged %d rows", 3)

	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}

func TestConsoleLogger_InfoAndError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, false)

	logger.Info("merged %d rows", 2)
	logger.Error("merge failed: %v", "boom")

	expected := "merged 2 rows\n[ERROR] merge failed: boom\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestConsoleLogger_NoArgsKeepsPercentSigns(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, true)

	logger.Verbose("WHERE (target.\"a\" % 2)")

	expected := "[VERBOSE] WHERE (target.\"a\" % 2)\n"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
}

func TestConsoleLogger_DefaultsToStderr(t *testing.T) {
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	logger := NewConsoleLogger(false)
	logger.Info("to stderr")

	w.Close()
	os.Stderr = old

	var buf bytes.Buffer
	io.Copy(&buf, r)

	if buf.String() != "to stderr\n" {
		t.Errorf("Expected %q, got %q", "to stderr\n", buf.String())
	}
}

func TestConsoleLogger_ConcurrentWrites(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriterLogger(&buf, true)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			logger.Verbose("line %d", i)
		}(i)
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 50 {
		t.Fatalf("Expected 50 lines, got %d", len(lines))
	}
	for _, line := range lines {
		if !strings.HasPrefix(line, "[VERBOSE] line ") {
			t.Errorf("Interleaved output: %q", line)
		}
	}
}

func TestRecordingLogger(t *testing.T) {
	logger := NewRecordingLogger()

	logger.Verbose("sql: %s", "INSERT")
	logger.Info("done")
	logger.Error("failed %d", 1)

	entries := logger.Entries()
	if len(entries) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(entries))
	}
	if !logger.Contains(LevelVerbose, "INSERT") {
		t.Error("Expected verbose entry containing INSERT")
	}
	if logger.Contains(LevelInfo, "INSERT") {
		t.Error("Did not expect info entry containing INSERT")
	}
	if got := fmt.Sprint(entries[2]); !strings.Contains(got, "failed 1") {
		t.Errorf("Unexpected entry %s", got)
	}
}
