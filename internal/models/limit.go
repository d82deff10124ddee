package models

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// unlimitedLiteral is the wire form of an unlimited quota.
const unlimitedLiteral = "unlimited"

// Limit is a quota value: either a finite count or unlimited.
type Limit struct {
	Value     int
	Unlimited bool
}

// Finite returns a bounded limit. Negative values are clamped to zero.
func Finite(n int) Limit {
	if n < 0 {
		n = 0
	}
	return Limit{Value: n}
}

// UnlimitedLimit returns the unlimited sentinel.
func UnlimitedLimit() Limit {
	return Limit{Unlimited: true}
}

// Allows reports whether one more unit fits given used units already
// consumed. Negative usage counts as zero.
func (l Limit) Allows(used int) bool {
	if l.Unlimited {
		return true
	}
	return max(used, 0) < l.Value
}

// Minus returns the remaining allowance after used units, clamped to
// [0, Value].
func (l Limit) Minus(used int) Limit {
	if l.Unlimited {
		return l
	}
	return Finite(l.Value - max(used, 0))
}

func (l Limit) String() string {
	if l.Unlimited {
		return unlimitedLiteral
	}
	return strconv.Itoa(l.Value)
}

// MarshalJSON encodes the limit as a number or the string "unlimited".
func (l Limit) MarshalJSON() ([]byte, error) {
	if l.Unlimited {
		return json.Marshal(unlimitedLiteral)
	}
	return json.Marshal(l.Value)
}

// UnmarshalJSON accepts a number or the string "unlimited".
func (l *Limit) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if s != unlimitedLiteral {
			return fmt.Errorf("limit: unexpected string %q", s)
		}
		*l = UnlimitedLimit()
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("limit: %w", err)
	}
	*l = Finite(n)
	return nil
}
