// Package sharing resolves which content-visibility destinations a plan may
// use, and arbitrates a user's selection against that policy.
package sharing

import (
	"github.com/ajitpratap0/brain-access/internal/catalog"
	"github.com/ajitpratap0/brain-access/internal/models"
)

// Options is the sharing policy for one plan.
type Options struct {
	Community    bool `json:"community"`
	Private      bool `json:"private"`
	Organization bool `json:"organization"`
	TeamAccess   bool `json:"teamAccess"`
	// Forced means community is the only destination and cannot be deselected.
	Forced bool `json:"forced"`
}

var policies = map[models.Plan]Options{
	models.PlanFree:       {Community: true, Forced: true},
	models.PlanSolo:       {Community: true, Private: true},
	models.PlanTeam:       {Community: true, Private: true, Organization: true, TeamAccess: true},
	models.PlanEnterprise: {Community: true, Private: true, Organization: true, TeamAccess: true},
}

// ForPlan returns the sharing policy for plan. Unknown plans get the free policy.
func ForPlan(plan string) Options {
	p, ok := catalog.ParsePlan(plan)
	if !ok {
		return policies[models.PlanFree]
	}
	return policies[p]
}

// Available reports whether d may be selected under o.
func (o Options) Available(d models.SharingDestination) bool {
	switch d {
	case models.DestinationCommunity:
		return o.Community
	case models.DestinationPrivate:
		return o.Private
	case models.DestinationOrganization:
		return o.Organization
	case models.DestinationTeam:
		return o.TeamAccess
	default:
		return false
	}
}

// Destinations returns the available destinations in canonical order.
func (o Options) Destinations() []models.SharingDestination {
	out := make([]models.SharingDestination, 0, len(models.ValidDestinations))
	for _, d := range models.ValidDestinations {
		if o.Available(d) {
			out = append(out, d)
		}
	}
	return out
}

// ForcedDestination returns the destination that is always selected, if any.
func (o Options) ForcedDestination() (models.SharingDestination, bool) {
	if !o.Forced {
		return "", false
	}
	ds := o.Destinations()
	if len(ds) != 1 {
		return "", false
	}
	return ds[0], true
}
