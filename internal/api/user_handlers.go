package api

import (
	"errors"
	"net/http"

	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/entitlement"
	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/quota"
)

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.GetUser(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeDomainError(w, wrapRead("get user", r.PathValue("id"), err))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// setPlanRequest is the body accepted by PUT /v1/users/{id}/plan.
type setPlanRequest struct {
	Plan string `json:"plan" validate:"required,plan"`
}

func (s *Server) handleSetPlan(w http.ResponseWriter, r *http.Request) {
	var req setPlanRequest
	if !s.decode(w, r, &req) {
		return
	}
	id := r.PathValue("id")
	plan, _ := catalog.ParsePlan(req.Plan)
	if err := s.store.SetUserPlan(r.Context(), id, plan); err != nil {
		s.writeDomainError(w, wrapWrite("set plan", id, err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"user_id": id, "plan": string(plan)})
}

// userContextResponse is returned by GET /v1/users/{id}/context.
type userContextResponse struct {
	entitlement.Context
	Degraded bool `json:"degraded"`
}

func (s *Server) handleUserContext(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	c, err := entitlement.ContextForUser(r.Context(), s.store, id)
	if err != nil {
		s.logger.Warn("user context: plan read failed, serving free context", "user_id", id, "error", err)
	}
	s.writeJSON(w, http.StatusOK, userContextResponse{Context: c, Degraded: err != nil})
}

func (s *Server) handleQuota(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := s.checker.Check(r.Context(), id)
	if err != nil {
		s.logger.Warn("quota: degraded decision", "user_id", id, "error", err)
	}
	s.writeJSON(w, http.StatusOK, d)
}

func (s *Server) handleRecordUpload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	d, err := s.checker.Record(r.Context(), id)
	switch {
	case d != nil && d.Recorded:
		if err != nil {
			s.logger.Warn("upload recorded on degraded state", "user_id", id, "error", err)
		}
		s.writeJSON(w, http.StatusOK, d)
	case errors.Is(err, quota.ErrQuotaExceeded):
		s.writeJSON(w, http.StatusTooManyRequests, map[string]any{"error": err.Error(), "decision": d})
	default:
		s.writeDomainError(w, err)
	}
}

// brainAccessStatusResponse is returned by GET /v1/users/{id}/brain-access.
type brainAccessStatusResponse struct {
	BrainAccess *models.BrainAccessRequest `json:"brain_access"`
	// Degraded is set when the status could not be read and none is a
	// fallback rather than the stored state.
	Degraded bool `json:"degraded"`
}

func (s *Server) handleBrainAccessStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.workflow.GetStatus(r.Context(), r.PathValue("id"))
	s.writeJSON(w, http.StatusOK, brainAccessStatusResponse{BrainAccess: rec, Degraded: err != nil})
}

// brainAccessRequest is the body accepted by POST /v1/users/{id}/brain-access.
type brainAccessRequest struct {
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email"`
	Organization string `json:"organization" validate:"max=200"`
}

func (s *Server) handleBrainAccessRequest(w http.ResponseWriter, r *http.Request) {
	var req brainAccessRequest
	if !s.decode(w, r, &req) {
		return
	}
	res, err := s.workflow.RequestAccess(r.Context(), r.PathValue("id"), models.RequesterInfo{
		Name:         req.Name,
		Email:        req.Email,
		Organization: req.Organization,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusAccepted, res)
}

// approveRequest is the body accepted by POST .../brain-access/approve.
type approveRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Notes      string `json:"notes" validate:"max=2000"`
}

func (s *Server) handleBrainAccessApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.workflow.Approve(r.Context(), r.PathValue("id"), req.ApproverID, req.Notes)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// rejectRequest is the body accepted by POST .../brain-access/reject.
type rejectRequest struct {
	ApproverID string `json:"approver_id" validate:"required"`
	Reason     string `json:"reason" validate:"required,max=2000"`
}

func (s *Server) handleBrainAccessReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if !s.decode(w, r, &req) {
		return
	}
	rec, err := s.workflow.Reject(r.Context(), r.PathValue("id"), req.ApproverID, req.Reason)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}
