// Package httpadapter exposes the engine over HTTP. Handlers are thin: they
// decode, call a port, and encode; all compliance semantics live behind the
// ports.
package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"attest/internal/domain"
	"attest/internal/metrics"
	"attest/internal/ports"
	"attest/internal/sampling"
)

type Server struct {
	snapshots ports.SnapshotProvider
	accounts  ports.Accounts
	runs      ports.RunRepository
	metrics   *metrics.Metrics
	log       *zap.Logger
}

func New(snapshots ports.SnapshotProvider, accounts ports.Accounts, runs ports.RunRepository, m *metrics.Metrics, log *zap.Logger) *Server {
	return &Server{snapshots: snapshots, accounts: accounts, runs: runs, metrics: m, log: log}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.getHealthz)
	r.Get("/entities/{id}/snapshot", s.getSnapshot)
	r.Post("/evaluations", s.postEvaluation)
	r.Get("/evaluations/{id}", s.getEvaluation)
	r.Get("/accounts/{id}", s.getAccount)
	r.Post("/accounts/{id}/lock", s.postLock)
	r.Post("/accounts/{id}/unlock", s.postUnlock)
	r.Post("/accounts/{id}/overdue", s.postOverdue)
	r.Post("/samples", s.postSample)
	return r
}

func (s *Server) getHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshots.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) postEvaluation(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.CreateRun(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, run)
}

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	run, err := s.runs.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) getAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := s.accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type lockRequest struct {
	Confirmation string `json:"confirmation"`
	Reason       string `json:"reason"`
	Notes        string `json:"notes"`
	ActorID      string `json:"actor_id"`
}

func (s *Server) postLock(w http.ResponseWriter, r *http.Request) {
	var req lockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	acct, err := s.accounts.Lock(r.Context(), chi.URLParam(r, "id"), req.Confirmation, req.Reason, req.Notes, req.ActorID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type unlockRequest struct {
	Notes   string `json:"notes"`
	ActorID string `json:"actor_id"`
}

func (s *Server) postUnlock(w http.ResponseWriter, r *http.Request) {
	var req unlockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	acct, err := s.accounts.Unlock(r.Context(), chi.URLParam(r, "id"), req.Notes, req.ActorID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

type overdueRequest struct {
	DaysOverdue int `json:"days_overdue"`
}

func (s *Server) postOverdue(w http.ResponseWriter, r *http.Request) {
	var req overdueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	acct, err := s.accounts.SyncOverdue(r.Context(), chi.URLParam(r, "id"), req.DaysOverdue)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (s *Server) postSample(w http.ResponseWriter, r *http.Request) {
	var req sampling.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.badRequest(w, "invalid request body")
		return
	}
	result, err := sampling.Sample(req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if s.metrics != nil {
		s.metrics.SamplingRequests.WithLabelValues(string(req.Method)).Inc()
	}
	writeJSON(w, http.StatusOK, result)
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var lockErr *domain.LockError
	var samplingErr *domain.SamplingError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Kind: "conflict"})
	case errors.As(err, &lockErr):
		status := http.StatusConflict
		if lockErr.Kind == domain.LockBadToken {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, errorResponse{Error: lockErr.Error(), Kind: string(lockErr.Kind)})
	case errors.As(err, &samplingErr):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: samplingErr.Error()})
	default:
		s.log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
