package catalog

import (
	"errors"
	"fmt"

	"github.com/ajitpratap0/brain-access/internal/models"
)

// Validate checks the integrity of the static tables. A failure is a data
// bug in this package, never a runtime condition.
func Validate() error {
	var errs []error

	if len(plans) != len(models.ValidPlans) {
		errs = append(errs, fmt.Errorf("catalog: %d plans registered, %d plan keys defined", len(plans), len(models.ValidPlans)))
	}
	for i, p := range plans {
		if p.Rank != i {
			errs = append(errs, fmt.Errorf("catalog: plan %q has rank %d at position %d", p.Plan, p.Rank, i))
		}
		if !p.Plan.IsValid() {
			errs = append(errs, fmt.Errorf("catalog: plan %q is not a known plan key", p.Plan))
		}
		if _, ok := planFeatures[p.Plan]; !ok {
			errs = append(errs, fmt.Errorf("catalog: plan %q has no feature set", p.Plan))
		}
	}

	// Monotonic accumulation: every rank includes all features of the rank below.
	for i := 1; i < len(plans); i++ {
		lower, higher := plans[i-1].Plan, plans[i].Plan
		for f := range planFeatures[lower] {
			if !HasFeature(higher, f) {
				errs = append(errs, fmt.Errorf("catalog: plan %q lacks feature %q granted by lower plan %q", higher, f, lower))
			}
		}
	}

	// The top plan is the union of all features.
	top := TopPlan().Plan
	for _, info := range featureMeta {
		if !HasFeature(top, info.Feature) {
			errs = append(errs, fmt.Errorf("catalog: top plan %q lacks feature %q", top, info.Feature))
		}
	}

	for p, set := range planFeatures {
		for f := range set {
			if _, ok := featuresByKey[f]; !ok {
				errs = append(errs, fmt.Errorf("catalog: plan %q grants feature %q with no metadata", p, f))
			}
		}
	}

	for _, info := range features {
		if info.RequiredPlan == "" {
			errs = append(errs, fmt.Errorf("catalog: feature %q is not granted by any plan", info.Feature))
			continue
		}
		if !HasFeature(info.RequiredPlan, info.Feature) {
			errs = append(errs, fmt.Errorf("catalog: feature %q required plan %q does not grant it", info.Feature, info.RequiredPlan))
		}
	}

	return errors.Join(errs...)
}
