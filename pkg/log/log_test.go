package log

import (
	"bytes"
	"encoding/json"
	stdlog "log"
	"os"
	"strings"
	"testing"
	"time"
)

func newBufferedLogger(level Level, formatter Formatter) (Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	l := NewLogger(
		WithLevel(level),
		WithFormatter(formatter),
		WithOutput(NewWriterOutput(buf)),
	)
	return l, buf
}

func TestLevelGating(t *testing.T) {
	l, buf := newBufferedLogger(WarnLevel, &JSONFormatter{})
	l.Debug("hidden")
	l.Info("hidden")
	l.Warn("shown")
	l.Error("shown too")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("want 2 lines, got %d: %q", len(lines), buf.String())
	}
}

func TestJSONFormatterFields(t *testing.T) {
	l, buf := newBufferedLogger(InfoLevel, &JSONFormatter{})
	l.Info("hello", Str("who", "world"), Int("n", 7))

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v (%q)", err, buf.String())
	}
	if rec["msg"] != "hello" || rec["level"] != "INFO" {
		t.Fatalf("unexpected record: %v", rec)
	}
	if rec["who"] != "world" {
		t.Fatalf("missing field: %v", rec)
	}
	if n, ok := rec["n"].(float64); !ok || n != 7 {
		t.Fatalf("int field: %v", rec["n"])
	}
}

func TestWithPropagatesFields(t *testing.T) {
	l, buf := newBufferedLogger(InfoLevel, &JSONFormatter{})
	child := l.With(Component("worker"), Str("dest", "chat-1"))
	child.Info("tick")

	var rec map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec[ComponentKey] != "worker" || rec["dest"] != "chat-1" {
		t.Fatalf("fields not propagated: %v", rec)
	}
}

func TestTextFormatterDeterministicOrder(t *testing.T) {
	f := &TextFormatter{DisableTimestamp: true}
	entry := &Entry{
		Level:     InfoLevel,
		Message:   "m",
		Fields:    Fields{"b": 2, "a": 1, "c": "x"},
		Timestamp: time.Now(),
	}
	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("format: %v", err)
	}
	got := string(out)
	if !strings.Contains(got, `a=1 b=2 c="x"`) {
		t.Fatalf("unexpected order: %q", got)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"":        InfoLevel,
		"debug":   DebugLevel,
		"INFO":    InfoLevel,
		"warning": WarnLevel,
		"error":   ErrorLevel,
		"fatal":   FatalLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Fatalf("ParseLevel(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseLevel("loud"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}

func TestApplyConfigFileOutput(t *testing.T) {
	path := t.TempDir() + "/out.log"
	l, err := ApplyConfig(Config{Level: "debug", Format: "text", Output: path})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	l.Debug("written to file")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "written to file") {
		t.Fatalf("file missing entry: %q", data)
	}
}

func TestRedirectStdLog(t *testing.T) {
	l, buf := newBufferedLogger(InfoLevel, &TextFormatter{DisableTimestamp: true})
	RedirectStdLog(l)
	t.Cleanup(func() { stdlog.SetOutput(os.Stderr) })

	stdlog.Print("through the facade")
	if !strings.Contains(buf.String(), "through the facade") {
		t.Fatalf("std log line not captured: %q", buf.String())
	}
}

func TestFatalCallsExit(t *testing.T) {
	orig := osExit
	t.Cleanup(func() { osExit = orig })
	code := -1
	osExit = func(c int) { code = c }

	l, _ := newBufferedLogger(InfoLevel, &JSONFormatter{})
	l.Fatal("boom")
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
}
