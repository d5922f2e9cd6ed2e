package dispatchsvc

import (
	"testing"

	"github.com/jdertmann/herald/internal/eventlog"
)

func entry(dedupKey, payload string) eventlog.Entry {
	return eventlog.Entry{
		ID:       eventlog.EntryID{Epoch: 7, Seq: 3},
		DedupKey: dedupKey,
		Payload:  []byte(payload),
	}
}

func TestEmptyFilterMatchesAll(t *testing.T) {
	f, err := CompileFilter("  ")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Eval(entry("k", "anything")) {
		t.Fatalf("empty filter rejected an entry")
	}
}

func TestTextFilter(t *testing.T) {
	f, err := CompileFilter(`text.contains("budget")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Eval(entry("k", "the budget meeting")) {
		t.Fatalf("expected match")
	}
	if f.Eval(entry("k", "unrelated")) {
		t.Fatalf("expected no match")
	}
}

func TestJSONFieldFilter(t *testing.T) {
	f, err := CompileFilter(`json.committee == "finance"`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Eval(entry("k", `{"committee":"finance","title":"x"}`)) {
		t.Fatalf("expected match")
	}
	if f.Eval(entry("k", `{"committee":"sports"}`)) {
		t.Fatalf("expected no match")
	}
	// non-JSON payload: evaluation error counts as no-match
	if f.Eval(entry("k", "plain text")) {
		t.Fatalf("expected no match on non-JSON payload")
	}
}

func TestIDAndKeyVariables(t *testing.T) {
	f, err := CompileFilter(`epoch == 7 && seq == 3 && dedup_key.startsWith("doc#")`)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if !f.Eval(entry("doc#9", "p")) {
		t.Fatalf("expected match")
	}
	if f.Eval(entry("other", "p")) {
		t.Fatalf("expected no match")
	}
}

func TestCompileErrors(t *testing.T) {
	if _, err := CompileFilter("not a ( filter"); err == nil {
		t.Fatalf("expected parse error")
	}
	if _, err := CompileFilter("unknown_var == 1"); err == nil {
		t.Fatalf("expected check error")
	}
}

func TestNonBoolResultIsNoMatch(t *testing.T) {
	f, err := CompileFilter("size")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if f.Eval(entry("k", "p")) {
		t.Fatalf("non-bool result matched")
	}
}

func TestCompileCachesByExpression(t *testing.T) {
	expr := `text == "cached-probe"`
	if _, err := CompileFilter(expr); err != nil {
		t.Fatalf("compile: %v", err)
	}
	filterCacheMu.Lock()
	before := len(filterCache)
	filterCacheMu.Unlock()

	if _, err := CompileFilter(expr); err != nil {
		t.Fatalf("recompile: %v", err)
	}
	filterCacheMu.Lock()
	after := len(filterCache)
	filterCacheMu.Unlock()
	if after != before {
		t.Fatalf("cache grew on identical expression: %d -> %d", before, after)
	}
}
