package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"expvar"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ajitpratap0/brain-access/internal/brainaccess"
	"github.com/ajitpratap0/brain-access/internal/entitlement"
	"github.com/ajitpratap0/brain-access/internal/quota"
	"github.com/ajitpratap0/brain-access/internal/sharing"
	"github.com/ajitpratap0/brain-access/internal/store"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// Server is an HTTP API server that exposes entitlement, sharing, quota and
// Brain access operations.
type Server struct {
	store     store.Store
	engine    entitlement.Engine
	checker   *quota.Checker
	workflow  *brainaccess.Workflow
	logger    *slog.Logger
	authToken string // empty = no auth required
}

// NewServer creates a new Server with the given dependencies.
func NewServer(st store.Store, checker *quota.Checker, wf *brainaccess.Workflow, logger *slog.Logger, authToken string) *Server {
	return &Server{
		store:     st,
		engine:    entitlement.NewEngine(),
		checker:   checker,
		workflow:  wf,
		logger:    logger,
		authToken: authToken,
	}
}

// Handler returns an http.Handler with all routes registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Health check, no auth required.
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /debug/vars", s.auth(expvar.Handler().ServeHTTP))

	// Static catalog and pure entitlement queries.
	mux.HandleFunc("GET /v1/plans", s.auth(s.handlePlans))
	mux.HandleFunc("GET /v1/features", s.auth(s.handleFeatures))
	mux.HandleFunc("GET /v1/entitlements/{plan}/{feature}", s.auth(s.handleEntitlement))
	mux.HandleFunc("GET /v1/upgrade", s.auth(s.handleUpgrade))
	mux.HandleFunc("GET /v1/prompt/{plan}/{feature}", s.auth(s.handlePrompt))

	// Sharing policy.
	mux.HandleFunc("GET /v1/sharing/{plan}", s.auth(s.handleSharingOptions))
	mux.HandleFunc("POST /v1/sharing/apply", s.auth(s.handleSharingApply))
	mux.HandleFunc("POST /v1/sharing/validate", s.auth(s.handleSharingValidate))

	// Per-user state.
	mux.HandleFunc("GET /v1/users/{id}", s.auth(s.handleGetUser))
	mux.HandleFunc("PUT /v1/users/{id}/plan", s.auth(s.handleSetPlan))
	mux.HandleFunc("GET /v1/users/{id}/context", s.auth(s.handleUserContext))
	mux.HandleFunc("GET /v1/users/{id}/quota", s.auth(s.handleQuota))
	mux.HandleFunc("POST /v1/users/{id}/uploads", s.auth(s.handleRecordUpload))
	mux.HandleFunc("GET /v1/users/{id}/brain-access", s.auth(s.handleBrainAccessStatus))
	mux.HandleFunc("POST /v1/users/{id}/brain-access", s.auth(s.handleBrainAccessRequest))
	mux.HandleFunc("POST /v1/users/{id}/brain-access/approve", s.auth(s.handleBrainAccessApprove))
	mux.HandleFunc("POST /v1/users/{id}/brain-access/reject", s.auth(s.handleBrainAccessReject))

	return mux
}

// --- middleware ---

// auth wraps a handler with Bearer token authentication when authToken is set.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.authToken == "" {
			next(w, r)
			return
		}
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			s.writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.logger.Warn("healthz: store ping failed", "error", err)
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- helpers ---

// decode reads a size-limited JSON body into v and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if err := validateStruct(v); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// writeJSON encodes v as JSON and writes it to w with the given status code.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if encErr := json.NewEncoder(w).Encode(v); encErr != nil {
		s.logger.Error("failed to encode response", "error", encErr)
	}
}

// writeError writes a JSON error response.
func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps workflow, sharing, quota and persistence errors to
// HTTP status codes.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	var (
		already *brainaccess.AlreadyRequestedError
		invalid *brainaccess.InvalidTransitionError
		persist *store.PersistenceError
	)
	switch {
	case errors.As(err, &already):
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"error":  "already_requested",
			"status": already.Status,
		})
	case errors.As(err, &invalid):
		s.writeJSON(w, http.StatusConflict, map[string]any{
			"error": "invalid_transition",
			"from":  invalid.From,
			"to":    invalid.To,
		})
	case errors.Is(err, quota.ErrQuotaExceeded):
		s.writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, brainaccess.ErrReasonRequired),
		errors.Is(err, brainaccess.ErrApproverRequired),
		errors.Is(err, brainaccess.ErrUserIDRequired),
		errors.Is(err, sharing.ErrNoDestination),
		errors.Is(err, sharing.ErrDestinationUnavailable),
		errors.Is(err, sharing.ErrForcedDestination),
		errors.Is(err, sharing.ErrExclusiveConflict):
		s.writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &persist):
		s.logger.Error("persistence failure", "op", persist.Op, "user_id", persist.UserID, "error", persist.Err)
		s.writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	case errors.Is(err, store.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "user not found")
	default:
		s.logger.Error("unhandled error", "error", err)
		s.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// wrapRead marks a store read failure as a persistence error, keeping
// ErrNotFound as is.
func wrapRead(op, userID string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return err
	}
	return &store.PersistenceError{Op: op, UserID: userID, Err: err}
}

// wrapWrite marks a store write failure as a persistence error.
func wrapWrite(op, userID string, err error) error {
	return &store.PersistenceError{Op: op, UserID: userID, Err: err}
}

// Shutdown gracefully shuts down an http.Server with the given timeout.
// This is a convenience helper used by the serve command.
func Shutdown(srv *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
