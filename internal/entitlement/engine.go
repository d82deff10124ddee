// Package entitlement answers plan/feature access questions.
//
// Every function is total: unknown plan or feature keys resolve to the most
// restrictive answer instead of an error, because callers use these results
// to decide what to render.
package entitlement

import (
	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/metrics"
	"github.com/ajitpratap0/brain-access/internal/models"
)

// Engine evaluates entitlements against the static catalog. The zero value
// is ready to use.
type Engine struct{}

// NewEngine returns an Engine.
func NewEngine() Engine { return Engine{} }

// HasFeatureAccess reports whether plan grants feature. Unknown inputs are denied.
func (Engine) HasFeatureAccess(plan, feature string) bool {
	metrics.Inc(metrics.EntitlementChecks)
	p, okP := catalog.ParsePlan(plan)
	f, okF := catalog.ParseFeature(feature)
	if !okP || !okF || !catalog.HasFeature(p, f) {
		metrics.Inc(metrics.AccessDenied)
		return false
	}
	return true
}

// RequiredPlan returns the lowest plan granting feature.
func (Engine) RequiredPlan(feature string) (models.Plan, bool) {
	f, ok := catalog.ParseFeature(feature)
	if !ok {
		return "", false
	}
	info, _ := catalog.Feature(f)
	if info.RequiredPlan == "" {
		return "", false
	}
	return info.RequiredPlan, true
}

// CanUpgradeForFeature reports whether moving above plan would unlock
// feature, i.e. the feature's required plan ranks strictly higher than plan.
// An unknown plan is ranked as free.
func (e Engine) CanUpgradeForFeature(plan, feature string) bool {
	required, ok := e.RequiredPlan(feature)
	if !ok {
		return false
	}
	requiredRank, _ := catalog.Rank(required)
	currentRank, _ := catalog.Rank(baseline(plan))
	return requiredRank > currentRank
}

// baseline resolves plan for upgrade arithmetic, falling back to free.
func baseline(plan string) models.Plan {
	if p, ok := catalog.ParsePlan(plan); ok {
		return p
	}
	return models.PlanFree
}

// UpgradeFeatures returns the features target grants that current does not,
// in presentation order. Unknown targets unlock nothing; an unknown current
// plan is treated as free.
func (Engine) UpgradeFeatures(current, target string) []models.Feature {
	t, ok := catalog.ParsePlan(target)
	if !ok {
		return []models.Feature{}
	}
	c := baseline(current)
	out := []models.Feature{}
	for _, f := range catalog.FeaturesFor(t) {
		if !catalog.HasFeature(c, f) {
			out = append(out, f)
		}
	}
	return out
}

// NextPlan returns the plan ranked exactly one above current.
func (Engine) NextPlan(current string) (models.Plan, bool) {
	p, ok := catalog.ParsePlan(current)
	if !ok {
		return "", false
	}
	rank, _ := catalog.Rank(p)
	next, ok := catalog.PlanByRank(rank + 1)
	if !ok {
		return "", false
	}
	return next.Plan, true
}
