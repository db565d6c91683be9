package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"info", LevelInfo, false},
		{"", LevelInfo, false},
		{"warn", LevelWarn, false},
		{"warning", LevelWarn, false},
		{"ERROR", LevelError, false},
		{"verbose", LevelInfo, true},
	}

	for _, tc := range cases {
		got, err := ParseLevel(tc.in)
		if (err != nil) != tc.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestParseFormat(t *testing.T) {
	if f, err := ParseFormat("json"); err != nil || f != FormatJSON {
		t.Errorf("ParseFormat(json) = %v, %v", f, err)
	}
	if f, err := ParseFormat(""); err != nil || f != FormatText {
		t.Errorf("ParseFormat(empty) = %v, %v", f, err)
	}
	if _, err := ParseFormat("xml"); err == nil {
		t.Error("ParseFormat(xml) should fail")
	}
}

func TestFileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(&Config{
		Level:     LevelInfo,
		Format:    FormatJSON,
		Output:    "file",
		FilePath:  path,
		MaxSize:   10,
		Component: "test",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Info("hello", "answer", 42)
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		t.Fatalf("log line is not JSON: %v\n%s", err, data)
	}
	if record["msg"] != "hello" || record["component"] != "test" {
		t.Errorf("unexpected record: %v", record)
	}
	if record["answer"] != float64(42) {
		t.Errorf("answer = %v, want 42", record["answer"])
	}
}

func TestLevelFiltering(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(&Config{
		Level:    LevelWarn,
		Output:   "file",
		FilePath: path,
		MaxSize:  10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	l.Info("dropped")
	l.Warn("kept")

	// SetLevel applies to subsequent records on the same handler.
	l.SetLevel(LevelDebug)
	l.Debug("now visible")
	l.Close()

	data, _ := os.ReadFile(path)
	out := string(data)
	if strings.Contains(out, "dropped") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(out, "kept") || !strings.Contains(out, "now visible") {
		t.Errorf("missing expected records:\n%s", out)
	}
}

func TestWithComponentSharesLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.log")
	l, err := New(&Config{
		Level:    LevelError,
		Output:   "file",
		FilePath: path,
		MaxSize:  10,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	child := l.WithComponent("child")
	child.Info("dropped")

	l.SetLevel(LevelInfo)
	child.Info("kept")
	l.Close()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "dropped") {
		t.Error("child should inherit the parent's level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("parent SetLevel should apply to the child")
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.log")

	r, err := NewFileRotator(&Config{
		FilePath:   path,
		MaxSize:    1, // 1 MB
		MaxBackups: 2,
	})
	if err != nil {
		t.Fatalf("NewFileRotator: %v", err)
	}
	defer r.Close()

	line := []byte(strings.Repeat("x", 64*1024) + "\n")
	for i := 0; i < 40; i++ {
		if _, err := r.Write(line); err != nil {
			t.Fatalf("write %d: %v", i, err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	backups := 0
	for _, e := range entries {
		if e.Name() != "test.log" {
			backups++
		}
	}
	if backups == 0 {
		t.Error("expected at least one rotated backup")
	}
	if backups > 2 {
		t.Errorf("got %d backups, want at most 2", backups)
	}
}
