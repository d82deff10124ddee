package api

import (
	"net/http"

	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/entitlement"
	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/sharing"
)

// planResponse is one entry of GET /v1/plans.
type planResponse struct {
	catalog.PlanInfo
	Features []models.Feature `json:"features"`
}

func (s *Server) handlePlans(w http.ResponseWriter, _ *http.Request) {
	plans := catalog.Plans()
	out := make([]planResponse, 0, len(plans))
	for _, p := range plans {
		out = append(out, planResponse{PlanInfo: p, Features: catalog.FeaturesFor(p.Plan)})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"plans": out})
}

func (s *Server) handleFeatures(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"features": catalog.Features()})
}

// entitlementResponse is returned by GET /v1/entitlements/{plan}/{feature}.
type entitlementResponse struct {
	Plan         string      `json:"plan"`
	Feature      string      `json:"feature"`
	Allowed      bool        `json:"allowed"`
	RequiredPlan models.Plan `json:"required_plan,omitempty"`
	CanUpgrade   bool        `json:"can_upgrade"`
	NextPlan     models.Plan `json:"next_plan,omitempty"`
}

func (s *Server) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	plan, feature := r.PathValue("plan"), r.PathValue("feature")
	resp := entitlementResponse{
		Plan:       plan,
		Feature:    feature,
		Allowed:    s.engine.HasFeatureAccess(plan, feature),
		CanUpgrade: s.engine.CanUpgradeForFeature(plan, feature),
	}
	resp.RequiredPlan, _ = s.engine.RequiredPlan(feature)
	resp.NextPlan, _ = s.engine.NextPlan(plan)
	s.writeJSON(w, http.StatusOK, resp)
}

// upgradeResponse is returned by GET /v1/upgrade.
type upgradeResponse struct {
	From     string                `json:"from"`
	To       string                `json:"to"`
	Features []catalog.FeatureInfo `json:"features"`
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	from, to := r.URL.Query().Get("from"), r.URL.Query().Get("to")
	if to == "" {
		s.writeError(w, http.StatusBadRequest, "to is required")
		return
	}
	resp := upgradeResponse{From: from, To: to, Features: []catalog.FeatureInfo{}}
	for _, f := range s.engine.UpgradeFeatures(from, to) {
		info, _ := catalog.Feature(f)
		resp.Features = append(resp.Features, info)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// promptResponse is returned by GET /v1/prompt/{plan}/{feature}.
type promptResponse struct {
	UpgradeNeeded bool                `json:"upgrade_needed"`
	Prompt        *entitlement.Prompt `json:"prompt,omitempty"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	p, ok := s.engine.UpgradePrompt(r.PathValue("plan"), r.PathValue("feature"))
	s.writeJSON(w, http.StatusOK, promptResponse{UpgradeNeeded: ok, Prompt: p})
}

// sharingOptionsResponse is returned by GET /v1/sharing/{plan}.
type sharingOptionsResponse struct {
	Plan         string                      `json:"plan"`
	Options      sharing.Options             `json:"options"`
	Destinations []models.SharingDestination `json:"destinations"`
}

func (s *Server) handleSharingOptions(w http.ResponseWriter, r *http.Request) {
	plan := r.PathValue("plan")
	opts := sharing.ForPlan(plan)
	s.writeJSON(w, http.StatusOK, sharingOptionsResponse{
		Plan:         plan,
		Options:      opts,
		Destinations: opts.Destinations(),
	})
}

// applySelectionRequest is the body accepted by POST /v1/sharing/apply.
type applySelectionRequest struct {
	Plan        string                      `json:"plan" validate:"required,plan"`
	Current     []models.SharingDestination `json:"current" validate:"dive,destination"`
	Destination models.SharingDestination   `json:"destination" validate:"required,destination"`
}

// selectionResponse is returned by the sharing selection endpoints.
type selectionResponse struct {
	Selection sharing.Selection `json:"selection"`
}

func (s *Server) handleSharingApply(w http.ResponseWriter, r *http.Request) {
	var req applySelectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	next, err := sharing.ApplySelection(sharing.NewSelection(req.Current...), req.Destination, sharing.ForPlan(req.Plan))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, selectionResponse{Selection: nonNil(next)})
}

// validateSelectionRequest is the body accepted by POST /v1/sharing/validate.
type validateSelectionRequest struct {
	Plan      string                      `json:"plan" validate:"required,plan"`
	Selection []models.SharingDestination `json:"selection" validate:"dive,destination"`
}

func (s *Server) handleSharingValidate(w http.ResponseWriter, r *http.Request) {
	var req validateSelectionRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := sharing.Validate(req.Selection, sharing.ForPlan(req.Plan))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, selectionResponse{Selection: out})
}

func nonNil(sel sharing.Selection) sharing.Selection {
	if sel == nil {
		return sharing.Selection{}
	}
	return sel
}
