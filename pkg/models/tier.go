package models

// Tier represents the capability level of a worker's model.
type Tier string

const (
	// TierScout is for cheap, fast judgments such as supervisor reviews.
	TierScout Tier = "scout"
	// TierBuilder is for standard task execution.
	TierBuilder Tier = "builder"
	// TierArchitect is for planning and open-ended tasks.
	TierArchitect Tier = "architect"
)

// Valid returns true if the tier is a known value.
func (t Tier) Valid() bool {
	switch t {
	case TierScout, TierBuilder, TierArchitect:
		return true
	default:
		return false
	}
}
