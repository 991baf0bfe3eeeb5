// Package api exposes the management HTTP interface: enqueueing actions,
// inspecting the queue, triggering drains, and the performance snapshot
// endpoints the diagnostics screen reads from.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/fanrally/syncbox/internal/dashboard"
	"github.com/fanrally/syncbox/internal/engine"
	"github.com/fanrally/syncbox/internal/httputil"
	"github.com/fanrally/syncbox/internal/perf"
	"github.com/fanrally/syncbox/internal/queue"
)

type API struct {
	engine *engine.Engine
	queue  *queue.Queue
	perf   *perf.Store
	log    zerolog.Logger
	mux    *http.ServeMux
}

type EnqueueRequest struct {
	Type    string         `json:"type"`
	Payload map[string]any `json:"payload"`
}

func New(e *engine.Engine, q *queue.Queue, p *perf.Store, log zerolog.Logger) *API {
	api := &API{
		engine: e,
		queue:  q,
		perf:   p,
		log:    log,
		mux:    http.NewServeMux(),
	}

	api.setupRoutes()
	return api
}

func (a *API) setupRoutes() {
	a.mux.HandleFunc("/api/actions", a.handleActions)
	a.mux.HandleFunc("/api/actions/", a.handleActionByID)
	a.mux.HandleFunc("/api/sync", a.handleSync)
	a.mux.HandleFunc("/api/sync/retry", a.handleRetry)
	a.mux.HandleFunc("/api/sync/status", a.handleStatus)
	a.mux.HandleFunc("/api/snapshots", a.handleSnapshots)
	a.mux.HandleFunc("/api/snapshots/stats", a.handleSnapshotStats)

	dash := dashboard.New(a.queue, a.perf)
	a.mux.HandleFunc("/api/dashboard/stats", dash.GetStats)
}

func (a *API) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

func (a *API) handleActions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.enqueueAction(w, r)
	case http.MethodGet:
		a.listActions(w, r)
	case http.MethodDelete:
		a.clearActions(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) enqueueAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		httputil.WriteJSONError(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	defer func() {
		if err := r.Body.Close(); err != nil {
			a.log.Warn().Err(err).Msg("failed to close request body")
		}
	}()

	var req EnqueueRequest
	if err := json.Unmarshal(body, &req); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if req.Type == "" {
		httputil.WriteJSONError(w, "Action type is required", http.StatusBadRequest)
		return
	}

	act, err := a.engine.Enqueue(r.Context(), req.Type, req.Payload)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, queue.ErrInvalidPayload) {
			status = http.StatusBadRequest
		}
		httputil.WriteJSONError(w, err.Error(), status)
		return
	}

	httputil.WriteJSON(w, act, http.StatusCreated)
}

func (a *API) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := a.queue.Actions(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, actions, http.StatusOK)
}

func (a *API) clearActions(w http.ResponseWriter, r *http.Request) {
	if err := a.queue.Clear(r.Context()); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleActionByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/actions/")
	if id == "" {
		httputil.WriteJSONError(w, "Action ID is required", http.StatusBadRequest)
		return
	}

	if err := a.queue.Remove(r.Context(), id); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := a.engine.Sync(r.Context())
	httputil.WriteJSON(w, res, http.StatusOK)
}

func (a *API) handleRetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	res := a.engine.Retry(r.Context())
	httputil.WriteJSON(w, res, http.StatusOK)
}

func (a *API) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	httputil.WriteJSON(w, a.engine.Status(r.Context()), http.StatusOK)
}

func (a *API) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.saveSnapshot(w, r)
	case http.MethodGet:
		a.listSnapshots(w, r)
	case http.MethodDelete:
		a.clearSnapshots(w, r)
	default:
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (a *API) saveSnapshot(w http.ResponseWriter, r *http.Request) {
	var snap perf.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		httputil.WriteJSONError(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	if err := a.perf.Save(r.Context(), snap); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusCreated)
}

func (a *API) listSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := a.perf.Snapshots(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, snaps, http.StatusOK)
}

func (a *API) clearSnapshots(w http.ResponseWriter, r *http.Request) {
	if err := a.perf.Clear(r.Context()); err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleSnapshotStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.WriteJSONError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	stats, err := a.perf.Stats(r.Context())
	if err != nil {
		httputil.WriteJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	httputil.WriteJSON(w, stats, http.StatusOK)
}
