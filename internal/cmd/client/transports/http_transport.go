package transports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// HTTPTransport talks to the herald JSON API.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport builds a transport against baseURL (e.g. http://127.0.0.1:8080).
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *HTTPTransport) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return t.do(req, out)
}

func (t *HTTPTransport) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+path, nil)
	if err != nil {
		return err
	}
	return t.do(req, out)
}

func (t *HTTPTransport) do(req *http.Request, out any) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = resp.Status
		}
		return fmt.Errorf("http error: %s", msg)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (t *HTTPTransport) Admit(ctx context.Context, dedupKey string) (bool, error) {
	var out struct {
		Admitted bool `json:"admitted"`
	}
	err := t.post(ctx, "/v1/admit", map[string]string{"dedupKey": dedupKey}, &out)
	return out.Admitted, err
}

func (t *HTTPTransport) Publish(ctx context.Context, dedupKey string, payload []byte) (PublishResult, error) {
	var out struct {
		Admitted bool   `json:"admitted"`
		ID       string `json:"id"`
		DedupKey string `json:"dedupKey"`
	}
	err := t.post(ctx, "/v1/publish", map[string]any{"dedupKey": dedupKey, "payload": payload}, &out)
	return PublishResult{Admitted: out.Admitted, ID: out.ID, DedupKey: out.DedupKey}, err
}

func (t *HTTPTransport) FanOut(ctx context.Context, dedupKey string, payload []byte, destinations []string) (bool, error) {
	var out struct {
		Admitted bool `json:"admitted"`
	}
	err := t.post(ctx, "/v1/fanout", map[string]any{
		"dedupKey":     dedupKey,
		"payload":      payload,
		"destinations": destinations,
	}, &out)
	return out.Admitted, err
}

func (t *HTTPTransport) Register(ctx context.Context, id, filter string) (bool, error) {
	var out struct {
		Created bool `json:"created"`
	}
	err := t.post(ctx, "/v1/destinations/register", map[string]string{"id": id, "filter": filter}, &out)
	return out.Created, err
}

func (t *HTTPTransport) Destinations(ctx context.Context) ([]string, error) {
	var out struct {
		Destinations []string `json:"destinations"`
	}
	err := t.get(ctx, "/v1/destinations", &out)
	return out.Destinations, err
}

func (t *HTTPTransport) Ack(ctx context.Context, destination, id string) (bool, error) {
	return t.cursorOp(ctx, "/v1/ack", destination, id)
}

func (t *HTTPTransport) Unack(ctx context.Context, destination, id string) (bool, error) {
	return t.cursorOp(ctx, "/v1/unack", destination, id)
}

func (t *HTTPTransport) cursorOp(ctx context.Context, path, destination, id string) (bool, error) {
	var out struct {
		Applied bool `json:"applied"`
	}
	err := t.post(ctx, path, map[string]string{"destination": destination, "id": id}, &out)
	return out.Applied, err
}

func (t *HTTPTransport) Migrate(ctx context.Context, oldID, newID string) (bool, error) {
	var out struct {
		Applied bool `json:"applied"`
	}
	err := t.post(ctx, "/v1/migrate", map[string]string{"old": oldID, "new": newID}, &out)
	return out.Applied, err
}

func (t *HTTPTransport) Trim(ctx context.Context, before string, batchLimit int) (int, error) {
	var out struct {
		Deleted int `json:"deleted"`
	}
	err := t.post(ctx, "/v1/admin/trim", map[string]any{"before": before, "batchLimit": batchLimit}, &out)
	return out.Deleted, err
}

func (t *HTTPTransport) Forget(ctx context.Context, dedupKey string) error {
	return t.post(ctx, "/v1/admin/forget", map[string]string{"dedupKey": dedupKey}, nil)
}

func (t *HTTPTransport) QueueLen(ctx context.Context, destination string) (int, error) {
	var out struct {
		Length int `json:"length"`
	}
	err := t.get(ctx, "/v1/admin/queue?destination="+url.QueryEscape(destination), &out)
	return out.Length, err
}

func (t *HTTPTransport) QueuePop(ctx context.Context, destination string) ([]byte, bool, error) {
	var out struct {
		Popped  bool   `json:"popped"`
		Payload []byte `json:"payload"`
	}
	err := t.post(ctx, "/v1/admin/queue/pop", map[string]string{"destination": destination}, &out)
	return out.Payload, out.Popped, err
}

func (t *HTTPTransport) QueueDrop(ctx context.Context, destination string) error {
	return t.post(ctx, "/v1/admin/queue/drop", map[string]string{"destination": destination}, nil)
}

func (t *HTTPTransport) ListEntries(ctx context.Context, after string, limit int) ([]Entry, string, error) {
	q := url.Values{}
	if after != "" {
		q.Set("after", after)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/v1/entries"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out struct {
		Entries []Entry `json:"entries"`
		Tail    string  `json:"tail"`
	}
	err := t.get(ctx, path, &out)
	return out.Entries, out.Tail, err
}
