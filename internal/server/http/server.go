package httpserver

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jdertmann/herald/internal/eventlog"
	"github.com/jdertmann/herald/internal/runtime"
	dispatchsvc "github.com/jdertmann/herald/internal/services/dispatch"
	logpkg "github.com/jdertmann/herald/pkg/log"
)

type Server struct {
	rt     *runtime.Runtime
	srv    *http.Server
	lis    net.Listener
	svc    *dispatchsvc.Service
	logger logpkg.Logger
}

// New constructs a server with its own dispatch service.
func New(rt *runtime.Runtime, logger logpkg.Logger) *Server {
	return NewWithService(rt, nil, logger)
}

// NewWithService constructs a server over an existing dispatch service, so
// one service instance can back several surfaces.
func NewWithService(rt *runtime.Runtime, svc *dispatchsvc.Service, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewLogger().With(logpkg.Component("http"))
	}
	if svc == nil {
		svc = dispatchsvc.NewWithLogger(rt, logger)
	}
	mux := http.NewServeMux()
	s := &Server{
		rt:     rt,
		svc:    svc,
		logger: logger,
		srv:    &http.Server{Handler: cors(mux)},
	}
	mux.HandleFunc("/v1/healthz", s.handleHealth)
	mux.HandleFunc("/v1/admit", s.handleAdmit)
	mux.HandleFunc("/v1/publish", s.handlePublish)
	mux.HandleFunc("/v1/fanout", s.handleFanOut)
	mux.HandleFunc("/v1/destinations/register", s.handleRegister)
	mux.HandleFunc("/v1/destinations", s.handleDestinations)
	mux.HandleFunc("/v1/ack", s.handleAck)
	mux.HandleFunc("/v1/unack", s.handleUnack)
	mux.HandleFunc("/v1/migrate", s.handleMigrate)
	mux.HandleFunc("/v1/entries", s.handleEntries)
	mux.HandleFunc("/v1/admin/trim", s.handleTrim)
	mux.HandleFunc("/v1/admin/forget", s.handleForget)
	mux.HandleFunc("/v1/admin/queue", s.handleQueueLen)
	mux.HandleFunc("/v1/admin/queue/pop", s.handleQueuePop)
	mux.HandleFunc("/v1/admin/queue/drop", s.handleQueueDrop)
	if h := rt.Metrics().Handler(); h != nil {
		mux.Handle("/metrics", h)
	}
	return s
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	s.logger.Info("http server listening", logpkg.Str("addr", l.Addr().String()))
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.rt.CheckHealth(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_serving"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type admitReq struct {
	DedupKey string `json:"dedupKey"`
}

func (s *Server) handleAdmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req admitReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DedupKey == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	admitted, err := s.svc.AdmitOnce(r.Context(), req.DedupKey)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"admitted": admitted})
}

type publishReq struct {
	DedupKey string `json:"dedupKey"`
	Payload  []byte `json:"payload"`
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req publishReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if req.DedupKey == "" {
		req.DedupKey = uuid.NewString()
	}
	id, admitted, err := s.svc.Publish(r.Context(), req.DedupKey, req.Payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	resp := map[string]any{"admitted": admitted, "dedupKey": req.DedupKey}
	if admitted {
		resp["id"] = id.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

type fanOutReq struct {
	DedupKey     string   `json:"dedupKey"`
	Payload      []byte   `json:"payload"`
	Destinations []string `json:"destinations"`
}

func (s *Server) handleFanOut(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req fanOutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DedupKey == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	admitted, err := s.svc.FanOut(r.Context(), req.DedupKey, req.Payload, req.Destinations)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"admitted": admitted})
}

type registerReq struct {
	ID     string `json:"id"`
	Filter string `json:"filter"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req registerReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	created, err := s.svc.Register(r.Context(), req.ID, req.Filter)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"created": created})
}

func (s *Server) handleDestinations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if id := r.URL.Query().Get("id"); id != "" {
		s.writeDestinationDetail(w, id)
		return
	}
	ids, err := s.svc.Destinations()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"destinations": ids})
}

// writeDestinationDetail reports one destination's record, redirect markers
// included, alongside whether it is in the registered set.
func (s *Server) writeDestinationDetail(w http.ResponseWriter, id string) {
	registered, err := s.rt.Registry().Registered(id)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	dest, found, err := s.rt.Registry().Get(id)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	resp := map[string]any{
		"id":         id,
		"registered": registered,
		"filter":     dest.Filter,
		"cursor":     dest.Cursor.String(),
	}
	if dest.Migrated() {
		resp["migratedTo"] = dest.MigratedTo
	}
	writeJSON(w, http.StatusOK, resp)
}

type cursorReq struct {
	Destination string `json:"destination"`
	ID          string `json:"id"`
}

func (s *Server) handleAck(w http.ResponseWriter, r *http.Request) {
	s.handleCursorOp(w, r, s.svc.Acknowledge)
}

func (s *Server) handleUnack(w http.ResponseWriter, r *http.Request) {
	s.handleCursorOp(w, r, s.svc.Unacknowledge)
}

func (s *Server) handleCursorOp(w http.ResponseWriter, r *http.Request, op func(context.Context, string, eventlog.EntryID) (bool, error)) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req cursorReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Destination == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	id, err := eventlog.ParseEntryID(req.ID)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	applied, err := op(r.Context(), req.Destination, id)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

type migrateReq struct {
	Old string `json:"old"`
	New string `json:"new"`
}

func (s *Server) handleMigrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req migrateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Old == "" || req.New == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	applied, err := s.svc.Migrate(r.Context(), req.Old, req.New)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"applied": applied})
}

type entryResp struct {
	ID       string `json:"id"`
	DedupKey string `json:"dedupKey,omitempty"`
	Payload  []byte `json:"payload"`
}

func (s *Server) handleEntries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	after := eventlog.Zero
	if v := r.URL.Query().Get("after"); v != "" {
		id, err := eventlog.ParseEntryID(v)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		after = id
	}
	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := s.svc.ReadAfter(after, limit)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	out := make([]entryResp, 0, len(entries))
	for _, e := range entries {
		out = append(out, entryResp{ID: e.ID.String(), DedupKey: e.DedupKey, Payload: e.Payload})
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": out, "tail": s.svc.Tail().String()})
}
