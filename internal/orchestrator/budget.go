package orchestrator

import (
	"sync"
)

// BudgetStatus represents the current state of budget consumption.
type BudgetStatus int

const (
	// BudgetOK indicates usage is below the warning threshold (<80%).
	BudgetOK BudgetStatus = iota
	// BudgetWarning indicates usage is between warning and exhaustion (80-99%).
	BudgetWarning
	// BudgetExhausted indicates budget is fully consumed (>=100%).
	BudgetExhausted
)

// String returns a human-readable representation of the budget status.
func (s BudgetStatus) String() string {
	switch s {
	case BudgetOK:
		return "OK"
	case BudgetWarning:
		return "Warning"
	case BudgetExhausted:
		return "Exhausted"
	default:
		return "Unknown"
	}
}

// DefaultWarningThreshold is the default fraction at which warnings begin.
const DefaultWarningThreshold = 0.80

// BudgetHandler tracks a run's token and cost consumption against optional
// limits. A limit of zero means unlimited. The status is driven by
// whichever limit is closer to exhaustion.
type BudgetHandler struct {
	tokenBudget      int64
	costBudget       float64
	usedTokens       int64
	usedCost         float64
	warningThreshold float64
	warned           bool
	mu               sync.RWMutex
}

// NewBudgetHandler creates a handler for the given limits.
func NewBudgetHandler(tokenBudget int64, costBudget float64) *BudgetHandler {
	return &BudgetHandler{
		tokenBudget:      tokenBudget,
		costBudget:       costBudget,
		warningThreshold: DefaultWarningThreshold,
	}
}

// Update adds usage reported by an executor or supervisor call.
func (h *BudgetHandler) Update(tokens int64, cost float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.usedTokens += tokens
	h.usedCost += cost
}

// fractionLocked returns the larger of the token and cost usage fractions.
func (h *BudgetHandler) fractionLocked() float64 {
	var fraction float64
	if h.tokenBudget > 0 {
		fraction = float64(h.usedTokens) / float64(h.tokenBudget)
	}
	if h.costBudget > 0 {
		if f := h.usedCost / h.costBudget; f > fraction {
			fraction = f
		}
	}
	return fraction
}

// CheckBudget returns the current budget status.
// Returns:
//   - BudgetOK: usage < 80% (or configured warning threshold)
//   - BudgetWarning: usage 80-99%
//   - BudgetExhausted: usage >= 100%
func (h *BudgetHandler) CheckBudget() BudgetStatus {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.tokenBudget <= 0 && h.costBudget <= 0 {
		return BudgetOK
	}

	fraction := h.fractionLocked()
	if fraction >= 1.0 {
		return BudgetExhausted
	}
	if fraction >= h.warningThreshold {
		return BudgetWarning
	}
	return BudgetOK
}

// GetUsage returns tokens and cost consumed so far and the usage fraction
// of the tighter limit (0 when unlimited).
func (h *BudgetHandler) GetUsage() (tokens int64, cost float64, fraction float64) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.usedTokens, h.usedCost, h.fractionLocked()
}

// CanStartNew returns false once the budget is exhausted.
func (h *BudgetHandler) CanStartNew() bool {
	return h.CheckBudget() != BudgetExhausted
}

// ShouldWarn reports true exactly once, the first time it is called while
// the budget is at or above the warning threshold.
func (h *BudgetHandler) ShouldWarn() bool {
	if h.CheckBudget() == BudgetOK {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.warned {
		return false
	}
	h.warned = true
	return true
}

// GetWarningThreshold returns the current warning threshold (0.0-1.0).
func (h *BudgetHandler) GetWarningThreshold() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.warningThreshold
}

// SetWarningThreshold sets the warning threshold fraction (0.0-1.0).
// Invalid values are clamped.
func (h *BudgetHandler) SetWarningThreshold(threshold float64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if threshold < 0 {
		threshold = 0
	}
	if threshold > 1 {
		threshold = 1
	}

	h.warningThreshold = threshold
}
