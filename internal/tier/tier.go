// Package tier defines the ordered storage tiers of the data lake.
//
// Tiers are append/replace-only: artifacts are superseded, never mutated
// in place, and no tier ever reads from a later tier.
package tier

import "fmt"

// Tier represents one stage of the data lake.
type Tier int

const (
	// TierRaw holds immutable raw input files exactly as ingested.
	TierRaw Tier = iota

	// TierCleaned holds validated, schema-conformant datasets and the
	// merged dataset derived from them.
	TierCleaned

	// TierMirrored is the distributed-filesystem copy of the cleaned tier.
	TierMirrored

	// TierResults holds artifacts produced by downstream analyses plus
	// the per-run report.
	TierResults
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierRaw:
		return "raw"
	case TierCleaned:
		return "cleaned"
	case TierMirrored:
		return "mirrored"
	case TierResults:
		return "results"
	default:
		return fmt.Sprintf("unknown(%d)", t)
	}
}

// MarshalText implements encoding.TextMarshaler so tiers render as
// their names in JSON reports.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	parsed, err := ParseTier(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Next returns the next tier in promotion order.
// Returns the same tier if it's the last tier.
func (t Tier) Next() Tier {
	switch t {
	case TierRaw:
		return TierCleaned
	case TierCleaned:
		return TierMirrored
	case TierMirrored:
		return TierResults
	default:
		return t
	}
}

// IsLast returns true if this is the last tier.
func (t Tier) IsLast() bool {
	return t == TierResults
}

// ParseTier parses a string into a Tier.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "raw":
		return TierRaw, nil
	case "cleaned":
		return TierCleaned, nil
	case "mirrored":
		return TierMirrored, nil
	case "results":
		return TierResults, nil
	default:
		return TierRaw, fmt.Errorf("unknown tier: %s", s)
	}
}

// AllTiers returns all tiers in promotion order.
func AllTiers() []Tier {
	return []Tier{TierRaw, TierCleaned, TierMirrored, TierResults}
}
