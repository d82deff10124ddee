package sharing

import (
	"errors"
	"fmt"
	"slices"

	"github.com/ajitpratap0/brain-access/internal/metrics"
	"github.com/ajitpratap0/brain-access/internal/models"
)

var (
	// ErrNoDestination is returned when a submission selects no destination.
	ErrNoDestination = errors.New("at least one sharing destination must be selected")

	// ErrDestinationUnavailable is returned when a destination is unknown or
	// not offered by the plan's policy.
	ErrDestinationUnavailable = errors.New("sharing destination not available for plan")

	// ErrForcedDestination is returned when deselecting a forced destination.
	ErrForcedDestination = errors.New("forced sharing destination cannot be deselected")

	// ErrExclusiveConflict is returned when more than one mutually exclusive
	// destination is selected.
	ErrExclusiveConflict = errors.New("mutually exclusive sharing destinations selected")
)

// exclusive destinations replace each other: community, private and
// organization are alternatives; team is additive.
var exclusive = map[models.SharingDestination]struct{}{
	models.DestinationCommunity:    {},
	models.DestinationPrivate:      {},
	models.DestinationOrganization: {},
}

// IsExclusive reports whether d belongs to the mutually exclusive group.
func IsExclusive(d models.SharingDestination) bool {
	_, ok := exclusive[d]
	return ok
}

// Selection is a set of destinations kept in canonical order.
type Selection []models.SharingDestination

// NewSelection builds a canonical selection, dropping duplicates.
func NewSelection(ds ...models.SharingDestination) Selection {
	var s Selection
	for _, d := range ds {
		s = s.with(d)
	}
	return s
}

// Contains reports whether d is selected.
func (s Selection) Contains(d models.SharingDestination) bool {
	return slices.Contains(s, d)
}

func (s Selection) with(d models.SharingDestination) Selection {
	if s.Contains(d) {
		return s
	}
	out := append(slices.Clone(s), d)
	slices.SortFunc(out, func(a, b models.SharingDestination) int {
		return order(a) - order(b)
	})
	return out
}

func (s Selection) without(d models.SharingDestination) Selection {
	out := make(Selection, 0, len(s))
	for _, x := range s {
		if x != d {
			out = append(out, x)
		}
	}
	return out
}

// order is the canonical position of d; unknown keys sort last.
func order(d models.SharingDestination) int {
	if i := slices.Index(models.ValidDestinations, d); i >= 0 {
		return i
	}
	return len(models.ValidDestinations)
}

// ApplySelection toggles dest in current under opts. Activating an exclusive
// destination clears every other exclusive destination in the same step, so
// the result never holds two alternatives at once. Destinations opts no
// longer offers, for example after a downgrade, are dropped from the result.
func ApplySelection(current Selection, dest models.SharingDestination, opts Options) (Selection, error) {
	if !opts.Available(dest) {
		metrics.Inc(metrics.SharingRejected)
		return current, fmt.Errorf("%w: %q", ErrDestinationUnavailable, dest)
	}

	next := Selection{}
	for _, d := range current {
		if opts.Available(d) {
			next = next.with(d)
		}
	}
	if forced, ok := opts.ForcedDestination(); ok {
		next = next.with(forced)
	}

	if current.Contains(dest) {
		if forced, ok := opts.ForcedDestination(); ok && forced == dest {
			return next, ErrForcedDestination
		}
		return next.without(dest), nil
	}

	if IsExclusive(dest) {
		for d := range exclusive {
			next = next.without(d)
		}
	}
	return next.with(dest), nil
}

// Validate checks a submitted selection against opts and returns the
// canonical selection to persist. A forced destination is always included
// regardless of what was submitted.
func Validate(selection Selection, opts Options) (Selection, error) {
	out := Selection{}
	for _, d := range selection {
		if !opts.Available(d) {
			metrics.Inc(metrics.SharingRejected)
			return nil, fmt.Errorf("%w: %q", ErrDestinationUnavailable, d)
		}
		out = out.with(d)
	}
	if forced, ok := opts.ForcedDestination(); ok {
		out = out.with(forced)
	}
	if len(out) == 0 {
		metrics.Inc(metrics.SharingRejected)
		return nil, ErrNoDestination
	}

	n := 0
	for _, d := range out {
		if IsExclusive(d) {
			n++
		}
	}
	if n > 1 {
		metrics.Inc(metrics.SharingRejected)
		return nil, ErrExclusiveConflict
	}
	return out, nil
}
