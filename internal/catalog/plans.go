// Package catalog holds the static plan and feature registries.
//
// All tables are built once at package initialisation and never mutated.
// Accessors return copies so callers cannot alter shared state.
package catalog

import (
	"strings"

	"github.com/ajitpratap0/brain-access/internal/models"
)

// PlanInfo describes a subscription plan.
type PlanInfo struct {
	Plan         models.Plan        `json:"plan"`
	Rank         int                `json:"rank"`
	DisplayName  string             `json:"display_name"`
	Icon         string             `json:"icon"`
	Color        string             `json:"color"`
	QueryQuota   models.Limit       `json:"query_quota"`
	QueryPeriod  models.ResetPeriod `json:"query_period"`
	UploadQuota  models.Limit       `json:"upload_quota"`
	UploadPeriod models.ResetPeriod `json:"upload_period"`
}

// plans is ordered by rank; index == rank.
var plans = []PlanInfo{
	{
		Plan:         models.PlanFree,
		Rank:         0,
		DisplayName:  "Free",
		Icon:         "leaf",
		Color:        "#8E8E93",
		QueryQuota:   models.Finite(20),
		QueryPeriod:  models.PeriodDaily,
		UploadQuota:  models.Finite(3),
		UploadPeriod: models.PeriodMonthly,
	},
	{
		Plan:         models.PlanSolo,
		Rank:         1,
		DisplayName:  "Solo",
		Icon:         "person",
		Color:        "#007AFF",
		QueryQuota:   models.Finite(500),
		QueryPeriod:  models.PeriodMonthly,
		UploadQuota:  models.Finite(100),
		UploadPeriod: models.PeriodMonthly,
	},
	{
		Plan:         models.PlanTeam,
		Rank:         2,
		DisplayName:  "Team",
		Icon:         "people",
		Color:        "#34C759",
		QueryQuota:   models.UnlimitedLimit(),
		QueryPeriod:  models.PeriodMonthly,
		UploadQuota:  models.UnlimitedLimit(),
		UploadPeriod: models.PeriodMonthly,
	},
	{
		Plan:         models.PlanEnterprise,
		Rank:         3,
		DisplayName:  "Enterprise",
		Icon:         "business",
		Color:        "#AF52DE",
		QueryQuota:   models.UnlimitedLimit(),
		QueryPeriod:  models.PeriodMonthly,
		UploadQuota:  models.UnlimitedLimit(),
		UploadPeriod: models.PeriodMonthly,
	},
}

var plansByKey = indexPlans(plans)

func indexPlans(list []PlanInfo) map[models.Plan]PlanInfo {
	idx := make(map[models.Plan]PlanInfo, len(list))
	for _, p := range list {
		idx[p.Plan] = p
	}
	return idx
}

// Plans returns every plan ordered by rank.
func Plans() []PlanInfo {
	out := make([]PlanInfo, len(plans))
	copy(out, plans)
	return out
}

// Plan returns the metadata for p.
func Plan(p models.Plan) (PlanInfo, bool) {
	info, ok := plansByKey[p]
	return info, ok
}

// Rank returns the hierarchy rank of p.
func Rank(p models.Plan) (int, bool) {
	info, ok := plansByKey[p]
	if !ok {
		return -1, false
	}
	return info.Rank, true
}

// PlanByRank returns the plan at rank r.
func PlanByRank(r int) (PlanInfo, bool) {
	if r < 0 || r >= len(plans) {
		return PlanInfo{}, false
	}
	return plans[r], true
}

// TopPlan returns the most powerful plan.
func TopPlan() PlanInfo {
	return plans[len(plans)-1]
}

// ParsePlan resolves a caller-supplied plan key. Matching ignores case and
// surrounding whitespace.
func ParsePlan(s string) (models.Plan, bool) {
	p := models.Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := plansByKey[p]; !ok {
		return "", false
	}
	return p, true
}
