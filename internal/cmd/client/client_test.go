package client

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
)

func startAPIStub(t *testing.T) (*httptest.Server, *int32) {
	t.Helper()
	var acks int32
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/publish", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		_ = json.NewDecoder(r.Body).Decode(&req)
		key, _ := req["dedupKey"].(string)
		_ = json.NewEncoder(w).Encode(map[string]any{"admitted": true, "id": "1-1", "dedupKey": key})
	})
	mux.HandleFunc("/v1/destinations/register", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]bool{"created": true})
	})
	mux.HandleFunc("/v1/destinations", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string][]string{"destinations": {"chat-1"}})
	})
	mux.HandleFunc("/v1/ack", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&acks, 1)
		_ = json.NewEncoder(w).Encode(map[string]bool{"applied": true})
	})
	mux.HandleFunc("/v1/entries", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"entries": []map[string]any{{"id": "1-1", "payload": []byte(`{"k":"v"}`)}},
			"tail":    "1-1",
		})
	})
	mux.HandleFunc("/v1/admin/trim", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]int{"deleted": 4})
	})
	mux.HandleFunc("/v1/admin/queue", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"destination": "chat-1", "length": 2})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &acks
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute %v: %v", args, err)
	}
	return buf.String()
}

func TestPublishPrintsAdmission(t *testing.T) {
	srv, _ := startAPIStub(t)
	out := execute(t, NewPublishCommand(func() string { return srv.URL }),
		"--key", "doc#1", "--data", "hello")
	if !strings.Contains(out, `"admitted":true`) || !strings.Contains(out, `"id":"1-1"`) {
		t.Fatalf("output: %s", out)
	}
}

func TestDestinationListAndAck(t *testing.T) {
	srv, acks := startAPIStub(t)
	base := func() string { return srv.URL }

	out := execute(t, NewDestinationCommand(base), "list")
	if !strings.Contains(out, "chat-1") {
		t.Fatalf("list output: %s", out)
	}

	out = execute(t, NewDestinationCommand(base), "ack", "--id", "chat-1", "--entry", "1-1")
	if !strings.Contains(out, "applied: true") {
		t.Fatalf("ack output: %s", out)
	}
	if atomic.LoadInt32(acks) != 1 {
		t.Fatalf("server saw %d acks", atomic.LoadInt32(acks))
	}
}

func TestAckRequiresFlags(t *testing.T) {
	cmd := NewDestinationCommand(func() string { return "http://127.0.0.1:0" })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"ack", "--id", "chat-1"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without --entry")
	}
}

func TestAdminTrimPrintsDeleted(t *testing.T) {
	srv, _ := startAPIStub(t)
	out := execute(t, NewAdminCommand(func() string { return srv.URL }),
		"trim", "--before", "2-1")
	if !strings.Contains(out, "deleted: 4") {
		t.Fatalf("trim output: %s", out)
	}
}

func TestAdminQueueLen(t *testing.T) {
	srv, _ := startAPIStub(t)
	out := execute(t, NewAdminCommand(func() string { return srv.URL }),
		"queue", "len", "--id", "chat-1")
	if !strings.Contains(out, "length: 2") {
		t.Fatalf("queue len output: %s", out)
	}
}

func TestAdminTrimRequiresBefore(t *testing.T) {
	cmd := NewAdminCommand(func() string { return "http://127.0.0.1:0" })
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	cmd.SetArgs([]string{"trim"})
	if err := cmd.Execute(); err == nil {
		t.Fatalf("expected error without --before")
	}
}

func TestEntriesDecodesJSONPayload(t *testing.T) {
	srv, _ := startAPIStub(t)
	out := execute(t, NewEntriesCommand(func() string { return srv.URL }), "--limit", "10")
	if !strings.Contains(out, "payload_json") {
		t.Fatalf("entries output: %s", out)
	}
}
