package scheduler

import (
	"os"
	"strings"
	"testing"
)

func TestLevelString(t *testing.T) {
	if LevelWarn.String() != "warn" {
		t.Fatalf("LevelWarn.String() = %q, want %q", LevelWarn.String(), "warn")
	}
	if got := Level(99).String(); !strings.Contains(got, "99") {
		t.Fatalf("out-of-range Level.String() = %q, want it to mention 99", got)
	}
}

func TestNoopLoggerDiscardsEverything(t *testing.T) {
	l := NewNoopLogger()
	if l.Enabled(LevelError) {
		t.Fatalf("the no-op logger should never report a level enabled")
	}
	l.Log(Event{Level: LevelError, Message: "should be discarded"})
}

func TestTextLoggerRespectsLevelThreshold(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "textlogger-*.log")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	l := NewTextLogger(LevelWarn, f)
	if l.Enabled(LevelInfo) {
		t.Fatalf("LevelInfo should not be enabled when the threshold is LevelWarn")
	}
	if !l.Enabled(LevelError) {
		t.Fatalf("LevelError should be enabled when the threshold is LevelWarn")
	}

	l.Log(Event{Level: LevelInfo, Category: "test", Message: "filtered out"})
	l.Log(Event{Level: LevelError, Category: "test", Message: "written", CPU: 3, ThreadID: 7})

	contents, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	text := string(contents)
	if strings.Contains(text, "filtered out") {
		t.Fatalf("a below-threshold event should not appear in the log: %q", text)
	}
	if !strings.Contains(text, "written") || !strings.Contains(text, "cpu=3") || !strings.Contains(text, "thread=7") {
		t.Fatalf("expected the above-threshold event with its fields, got %q", text)
	}
}

func TestTextLoggerSetLevel(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "textlogger-*.log")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	defer f.Close()

	l := NewTextLogger(LevelError, f)
	if l.Enabled(LevelInfo) {
		t.Fatalf("LevelInfo should not be enabled at the LevelError threshold")
	}
	l.SetLevel(LevelInfo)
	if !l.Enabled(LevelInfo) {
		t.Fatalf("LevelInfo should be enabled after lowering the threshold with SetLevel")
	}
}
