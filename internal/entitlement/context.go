package entitlement

import (
	"context"
	"slices"

	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/models"
	"github.com/ajitpratap0/brain-access/internal/quota"
	"github.com/ajitpratap0/brain-access/internal/sharing"
	"github.com/ajitpratap0/brain-access/internal/store"
)

// Context is one user's resolved entitlements, handed to presentation code
// so no view repeats the access-check branching itself. It is a snapshot:
// build a fresh one per decision rather than caching it.
type Context struct {
	Plan        models.Plan        `json:"plan"`
	DisplayName string             `json:"display_name"`
	Features    []models.Feature   `json:"features"`
	Sharing     sharing.Options    `json:"sharing"`
	UploadLimit models.Limit       `json:"upload_limit"`
	QueryLimit  models.Limit       `json:"query_limit"`
	NextPlan    models.Plan        `json:"next_plan,omitempty"`
	Period      models.ResetPeriod `json:"upload_period"`
}

// NewContext resolves the entitlement context for plan. Unknown plans get
// an empty Plan, the free plan's sharing policy and no features.
func NewContext(plan string) Context {
	e := NewEngine()
	tr := quota.NewTracker()

	c := Context{
		Features:    []models.Feature{},
		Sharing:     sharing.ForPlan(plan),
		UploadLimit: tr.Limit(plan),
		QueryLimit:  tr.QueryLimit(plan),
		Period:      tr.UploadPeriod(plan),
	}
	if p, ok := catalog.ParsePlan(plan); ok {
		info, _ := catalog.Plan(p)
		c.Plan = p
		c.DisplayName = info.DisplayName
		c.Features = catalog.FeaturesFor(p)
	}
	if next, ok := e.NextPlan(plan); ok {
		c.NextPlan = next
	}
	return c
}

// ContextForUser reads the user's plan and resolves its context. A read
// failure yields the free context together with a *store.PersistenceError.
func ContextForUser(ctx context.Context, users store.UserStore, userID string) (Context, error) {
	plan, err := store.PlanOrFree(ctx, users, userID)
	return NewContext(string(plan)), err
}

// Allows reports whether the context grants feature.
func (c Context) Allows(feature models.Feature) bool {
	return slices.Contains(c.Features, feature)
}
