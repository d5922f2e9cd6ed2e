package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/jdertmann/herald/internal/eventlog"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

// Admin endpoints cover operator maintenance: trimming the log, releasing
// admission records, and inspecting or clearing direct queues. They act on
// the runtime stores directly rather than through the dispatch service.

type trimReq struct {
	Before     string `json:"before"`
	BatchLimit int    `json:"batchLimit"`
}

func (s *Server) handleTrim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req trimReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Before == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	cutoff, err := eventlog.ParseEntryID(req.Before)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	deleted, err := s.rt.Log().TrimBefore(r.Context(), cutoff, req.BatchLimit, 0)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.logger.Info("log trimmed",
		logpkg.Str("before", cutoff.String()),
		logpkg.Int("deleted", deleted))
	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

type forgetReq struct {
	DedupKey string `json:"dedupKey"`
}

func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req forgetReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DedupKey == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.rt.Gate().Forget(req.DedupKey); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"forgotten": true})
}

func (s *Server) handleQueueLen(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	dest := r.URL.Query().Get("destination")
	if dest == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	n, err := s.rt.Queues().Len(dest)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"destination": dest, "length": n})
}

type queueReq struct {
	Destination string `json:"destination"`
}

func (s *Server) handleQueuePop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req queueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	msg, ok, err := s.rt.Queues().Pop(r.Context(), req.Destination)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"popped": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"popped":  true,
		"seq":     msg.Seq,
		"payload": msg.Payload,
	})
}

func (s *Server) handleQueueDrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req queueReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := s.rt.Queues().Drop(r.Context(), req.Destination); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	s.logger.Info("queue dropped", logpkg.Str("destination", req.Destination))
	writeJSON(w, http.StatusOK, map[string]bool{"dropped": true})
}
