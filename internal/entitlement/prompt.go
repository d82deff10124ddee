package entitlement

import (
	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/models"
)

// Prompt is the data behind an upgrade call-to-action. It carries catalog
// data only; wording is the caller's job.
type Prompt struct {
	Feature      catalog.FeatureInfo `json:"feature"`
	CurrentPlan  models.Plan         `json:"current_plan"`
	RequiredPlan catalog.PlanInfo    `json:"required_plan"`
	// Unlocks lists everything the required plan adds over the current one.
	Unlocks []catalog.FeatureInfo `json:"unlocks"`
}

// UpgradePrompt builds the prompt shown when plan lacks feature. It returns
// false when no upgrade would help: the feature is unknown or already granted.
func (e Engine) UpgradePrompt(plan, feature string) (*Prompt, bool) {
	if !e.CanUpgradeForFeature(plan, feature) {
		return nil, false
	}
	required, _ := e.RequiredPlan(feature)
	f, _ := catalog.ParseFeature(feature)
	featureInfo, _ := catalog.Feature(f)
	planInfo, _ := catalog.Plan(required)

	current := baseline(plan)
	unlocks := e.UpgradeFeatures(string(current), string(required))
	p := &Prompt{
		Feature:      featureInfo,
		CurrentPlan:  current,
		RequiredPlan: planInfo,
		Unlocks:      make([]catalog.FeatureInfo, 0, len(unlocks)),
	}
	for _, u := range unlocks {
		info, _ := catalog.Feature(u)
		p.Unlocks = append(p.Unlocks, info)
	}
	return p, true
}
