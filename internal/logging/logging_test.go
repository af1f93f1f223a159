package logging

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestLogPath(t *testing.T) {
	path := LogPath("/data")
	if path != filepath.Join("/data", "logs", "codesync.log") {
		t.Errorf("unexpected log path: %s", path)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != "info" {
		t.Errorf("expected level 'info', got: %s", cfg.Level)
	}
	if cfg.MaxSizeMB != 10 {
		t.Errorf("expected MaxSizeMB 10, got: %d", cfg.MaxSizeMB)
	}
	if cfg.MaxFiles != 5 {
		t.Errorf("expected MaxFiles 5, got: %d", cfg.MaxFiles)
	}
	if cfg.FilePath != "" {
		t.Errorf("expected no file logging by default, got: %s", cfg.FilePath)
	}
}

func TestDebugConfig(t *testing.T) {
	cfg := DebugConfig("/data")

	if cfg.Level != "debug" {
		t.Errorf("expected level 'debug', got: %s", cfg.Level)
	}
	if cfg.FilePath != LogPath("/data") {
		t.Errorf("expected file logging under the data dir, got: %s", cfg.FilePath)
	}
}

func TestSetup_WritesJSONToFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "logs", "test.log")

	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: logPath})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	logger.Debug("walk finished", "files", 3)
	cleanup()

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("log file was not created: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"walk finished"`) || !strings.Contains(string(data), `"files":3`) {
		t.Errorf("unexpected log content: %s", data)
	}
}

func TestSetup_StderrOnly(t *testing.T) {
	var stderr bytes.Buffer
	logger, cleanup, err := Setup(Config{Level: "warn", Stderr: &stderr})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	defer cleanup()

	logger.Info("hidden")
	logger.Warn("shown")

	out := stderr.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn message missing: %s", out)
	}
}

func TestSetup_MirrorsFileToStderr(t *testing.T) {
	var stderr bytes.Buffer
	logPath := filepath.Join(t.TempDir(), "test.log")

	logger, cleanup, err := Setup(Config{FilePath: logPath, WriteToStderr: true, Stderr: &stderr})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}
	logger.Info("both")
	cleanup()

	data, _ := os.ReadFile(logPath)
	if !strings.Contains(string(data), "both") || !strings.Contains(stderr.String(), "both") {
		t.Errorf("expected message in file and stderr, file=%q stderr=%q", data, stderr.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"debug", "DEBUG"},
		{"DEBUG", "DEBUG"},
		{"info", "INFO"},
		{"warn", "WARN"},
		{"warning", "WARN"},
		{"error", "ERROR"},
		{"unknown", "INFO"},
	}

	for _, tc := range tests {
		level := ParseLevel(tc.input)
		if level.String() != tc.expected {
			t.Errorf("ParseLevel(%q) = %s, want %s", tc.input, level.String(), tc.expected)
		}
	}
}

func TestFindLogFile(t *testing.T) {
	dataDir := t.TempDir()

	if _, err := FindLogFile("", dataDir); err == nil {
		t.Error("expected error before any log was written")
	}
	if _, err := FindLogFile("/nonexistent/path/to/log.log", dataDir); err == nil {
		t.Error("expected error for nonexistent explicit file")
	}

	path := LogPath(dataDir)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	found, err := FindLogFile("", dataDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found != path {
		t.Errorf("expected %s, got %s", path, found)
	}
}

func writeLog(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "codesync.log")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func logLine(level, msg string) string {
	return fmt.Sprintf(`{"time":"2026-01-02T15:04:05.123Z","level":%q,"msg":%q,"root":"/work/repo"}`, level, msg)
}

func TestViewer_Tail(t *testing.T) {
	path := writeLog(t,
		logLine("INFO", "one"),
		logLine("DEBUG", "two"),
		logLine("WARN", "three"),
		logLine("ERROR", "four"),
	)
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entries, err := v.Tail(path, 2)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Msg != "three" || entries[1].Msg != "four" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}

func TestViewer_Tail_Filters(t *testing.T) {
	path := writeLog(t,
		logLine("DEBUG", "sync state"),
		logLine("INFO", "sync complete"),
		logLine("WARN", "transfer failed"),
		"not json",
	)

	v := NewViewer(ViewerConfig{Level: "info", NoColor: true}, &bytes.Buffer{})
	entries, err := v.Tail(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	// Invalid lines have no level and parse as info.
	if len(entries) != 3 {
		t.Errorf("expected 3 entries at info and above, got %d", len(entries))
	}

	v = NewViewer(ViewerConfig{Pattern: regexp.MustCompile("sync"), NoColor: true}, &bytes.Buffer{})
	entries, err = v.Tail(path, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries matching pattern, got %d", len(entries))
	}
}

func TestViewer_Tail_NonexistentFile(t *testing.T) {
	v := NewViewer(ViewerConfig{}, &bytes.Buffer{})
	if _, err := v.Tail("/nonexistent/codesync.log", 10); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestViewer_FormatEntry(t *testing.T) {
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	entry := parseLine(`{"time":"2026-01-02T15:04:05.123Z","level":"INFO","msg":"sync complete","root":"/r","files":3}`)
	got := v.FormatEntry(entry)
	if got != "15:04:05.123 INFO  sync complete files=3 root=/r" {
		t.Errorf("unexpected format: %q", got)
	}

	raw := parseLine("plain text")
	if v.FormatEntry(raw) != "plain text" {
		t.Errorf("invalid lines should print raw, got %q", v.FormatEntry(raw))
	}
}

func TestViewer_Print(t *testing.T) {
	var out bytes.Buffer
	v := NewViewer(ViewerConfig{NoColor: true}, &out)
	v.Print([]LogEntry{parseLine(logLine("WARN", "a")), parseLine(logLine("ERROR", "b"))})

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
	if !strings.Contains(lines[1], "ERROR b") {
		t.Errorf("unexpected line: %q", lines[1])
	}
}

func TestViewer_Follow(t *testing.T) {
	path := writeLog(t, logLine("INFO", "before"))
	v := NewViewer(ViewerConfig{NoColor: true}, &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	entries := make(chan LogEntry, 4)
	done := make(chan error, 1)
	go func() { done <- v.Follow(ctx, path, entries) }()

	// Let Follow seek to the end first.
	time.Sleep(200 * time.Millisecond)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString(logLine("INFO", "after") + "\n")
	_ = f.Close()

	select {
	case e := <-entries:
		if e.Msg != "after" {
			t.Errorf("expected only new entries, got %q", e.Msg)
		}
	case <-ctx.Done():
		t.Fatal("no entry followed")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Follow returned error: %v", err)
	}
}
