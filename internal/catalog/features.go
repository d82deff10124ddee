package catalog

import (
	"slices"
	"strings"

	"github.com/ajitpratap0/brain-access/internal/models"
)

// FeatureInfo describes a gate-able feature. RequiredPlan is derived from
// the plan feature map, never declared by hand.
type FeatureInfo struct {
	Feature      models.Feature `json:"feature"`
	Name         string         `json:"name"`
	Description  string         `json:"description"`
	Icon         string         `json:"icon"`
	RequiredPlan models.Plan    `json:"required_plan"`
}

// featureMeta is display metadata for each feature, in presentation order.
var featureMeta = []FeatureInfo{
	{Feature: models.FeatureUploadTips, Name: "Share Tips", Description: "Upload short text tips to your Brain", Icon: "bulb"},
	{Feature: models.FeatureCommunitySharing, Name: "Community Sharing", Description: "Publish content to the community Brain", Icon: "globe"},
	{Feature: models.FeatureBasicQueries, Name: "Ask Brain", Description: "Ask questions against shared knowledge", Icon: "chatbubble"},
	{Feature: models.FeatureUploadPhotos, Name: "Photo Uploads", Description: "Upload photos and screenshots", Icon: "image"},
	{Feature: models.FeatureUploadFiles, Name: "File Uploads", Description: "Upload documents and PDFs", Icon: "document"},
	{Feature: models.FeatureBrainPrivateStorage, Name: "Private Brain", Description: "Keep content in a private personal Brain", Icon: "lock-closed"},
	{Feature: models.FeatureExtendedQueries, Name: "Extended Queries", Description: "Higher monthly query allowance", Icon: "flash"},
	{Feature: models.FeatureOrganizationSharing, Name: "Organization Sharing", Description: "Share content with your whole organization", Icon: "business"},
	{Feature: models.FeatureTeamAccess, Name: "Team Access", Description: "Share content with selected teammates", Icon: "people"},
	{Feature: models.FeatureUnlimitedQueries, Name: "Unlimited Queries", Description: "No cap on questions asked", Icon: "infinite"},
	{Feature: models.FeatureUnlimitedUploads, Name: "Unlimited Uploads", Description: "No cap on uploaded content", Icon: "cloud-upload"},
	{Feature: models.FeatureSharedBrain, Name: "Shared Brain", Description: "A knowledge store shared by the team", Icon: "git-network"},
	{Feature: models.FeatureSSO, Name: "Single Sign-On", Description: "SAML and OIDC sign-in", Icon: "key"},
	{Feature: models.FeatureAuditLogs, Name: "Audit Logs", Description: "Exportable record of content activity", Icon: "list"},
	{Feature: models.FeaturePrioritySupport, Name: "Priority Support", Description: "Dedicated support channel", Icon: "headset"},
	{Feature: models.FeatureCustomIntegrations, Name: "Custom Integrations", Description: "Connect Brain to internal systems", Icon: "construct"},
}

// Per-tier additions. Each tier inherits every feature of the tiers below it.
var (
	freeFeatures = []models.Feature{
		models.FeatureUploadTips,
		models.FeatureCommunitySharing,
		models.FeatureBasicQueries,
	}

	soloFeatures = appendFeatures(freeFeatures,
		models.FeatureUploadPhotos,
		models.FeatureUploadFiles,
		models.FeatureBrainPrivateStorage,
		models.FeatureExtendedQueries,
	)

	teamFeatures = appendFeatures(soloFeatures,
		models.FeatureOrganizationSharing,
		models.FeatureTeamAccess,
		models.FeatureUnlimitedQueries,
		models.FeatureUnlimitedUploads,
		models.FeatureSharedBrain,
	)

	enterpriseFeatures = appendFeatures(teamFeatures,
		models.FeatureSSO,
		models.FeatureAuditLogs,
		models.FeaturePrioritySupport,
		models.FeatureCustomIntegrations,
	)
)

// appendFeatures returns a new slice with extra features appended (no mutation).
func appendFeatures(base []models.Feature, extra ...models.Feature) []models.Feature {
	result := make([]models.Feature, len(base), len(base)+len(extra))
	copy(result, base)
	return append(result, extra...)
}

// planFeatures is the source of truth for access checks.
var planFeatures = map[models.Plan]map[models.Feature]struct{}{
	models.PlanFree:       toSet(freeFeatures),
	models.PlanSolo:       toSet(soloFeatures),
	models.PlanTeam:       toSet(teamFeatures),
	models.PlanEnterprise: toSet(enterpriseFeatures),
}

func toSet(list []models.Feature) map[models.Feature]struct{} {
	set := make(map[models.Feature]struct{}, len(list))
	for _, f := range list {
		set[f] = struct{}{}
	}
	return set
}

// features is featureMeta with RequiredPlan filled from planFeatures.
var features = deriveRequiredPlans(featureMeta)

var featuresByKey = indexFeatures(features)

// deriveRequiredPlans sets each feature's RequiredPlan to the lowest-ranked
// plan that grants it. Features no plan grants keep an empty RequiredPlan,
// which Validate reports.
func deriveRequiredPlans(meta []FeatureInfo) []FeatureInfo {
	out := make([]FeatureInfo, len(meta))
	copy(out, meta)
	for i := range out {
		for _, p := range plans {
			if _, ok := planFeatures[p.Plan][out[i].Feature]; ok {
				out[i].RequiredPlan = p.Plan
				break
			}
		}
	}
	return out
}

func indexFeatures(list []FeatureInfo) map[models.Feature]FeatureInfo {
	idx := make(map[models.Feature]FeatureInfo, len(list))
	for _, f := range list {
		idx[f.Feature] = f
	}
	return idx
}

// Features returns every feature in presentation order.
func Features() []FeatureInfo {
	out := make([]FeatureInfo, len(features))
	copy(out, features)
	return out
}

// Feature returns the metadata for f.
func Feature(f models.Feature) (FeatureInfo, bool) {
	info, ok := featuresByKey[f]
	return info, ok
}

// ParseFeature resolves a caller-supplied feature key.
func ParseFeature(s string) (models.Feature, bool) {
	f := models.Feature(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := featuresByKey[f]; !ok {
		return "", false
	}
	return f, true
}

// HasFeature reports whether plan p grants feature f.
func HasFeature(p models.Plan, f models.Feature) bool {
	set, ok := planFeatures[p]
	if !ok {
		return false
	}
	_, ok = set[f]
	return ok
}

// FeaturesFor returns the features granted by p in presentation order.
// Unknown plans grant nothing.
func FeaturesFor(p models.Plan) []models.Feature {
	set, ok := planFeatures[p]
	if !ok {
		return nil
	}
	out := make([]models.Feature, 0, len(set))
	for _, info := range features {
		if _, granted := set[info.Feature]; granted {
			out = append(out, info.Feature)
		}
	}
	return out
}

// SortFeatures orders fs by presentation order; unknown keys sort last by name.
func SortFeatures(fs []models.Feature) {
	pos := make(map[models.Feature]int, len(features))
	for i, info := range features {
		pos[info.Feature] = i
	}
	slices.SortFunc(fs, func(a, b models.Feature) int {
		pa, okA := pos[a]
		pb, okB := pos[b]
		switch {
		case okA && okB:
			return pa - pb
		case okA:
			return -1
		case okB:
			return 1
		default:
			return strings.Compare(string(a), string(b))
		}
	})
}
