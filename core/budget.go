package core

import (
	"fmt"
	"sync"
)

// CallBudget meters every model completion a research run may make. Analyst
// planning turns, writer synthesis and tool-internal generations (SQL
// planning, PDF summarization) all draw from the same pool, so the run's
// total model spend stays bounded no matter which layer generates.
type CallBudget struct {
	mu    sync.Mutex
	limit int
	used  int
}

// NewCallBudget creates a budget allowing at most limit calls. A limit of
// zero or less disables metering.
func NewCallBudget(limit int) *CallBudget {
	return &CallBudget{limit: limit}
}

// Spend draws one call from the budget, failing once the limit is crossed.
// The attempt is recorded either way, so Used reflects demand, not just
// completions that were allowed through.
func (b *CallBudget) Spend() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.used++
	if b.limit > 0 && b.used > b.limit {
		return fmt.Errorf("model call budget exhausted (limit %d)", b.limit)
	}

	return nil
}

// Used returns how many calls have been attempted against the budget.
func (b *CallBudget) Used() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.used
}

// Remaining returns the calls left before Spend starts failing, or -1 when
// metering is disabled.
func (b *CallBudget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.limit <= 0 {
		return -1
	}

	return b.limit - b.used
}
