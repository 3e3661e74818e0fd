package scheduler

import (
	"sync"
	"time"

	"github.com/samijaber1/aegis-gate/internal/engine"
)

// EvaluationState is the cached outcome of the latest tick for one SLO.
type EvaluationState struct {
	Evaluation *engine.Evaluation
	UpdatedAt  time.Time
	TTL        time.Duration
}

// IsStale returns true if the cached state is older than its TTL.
func (s *EvaluationState) IsStale(now time.Time) bool {
	return now.Sub(s.UpdatedAt) > s.TTL
}

// StateCache is a thread-safe cache of evaluation states keyed by SLO name.
type StateCache struct {
	mu     sync.RWMutex
	states map[string]*EvaluationState
}

// NewStateCache creates a new state cache.
func NewStateCache() *StateCache {
	return &StateCache{
		states: make(map[string]*EvaluationState),
	}
}

// Get retrieves cached state for an SLO.
func (c *StateCache) Get(sloName string) (*EvaluationState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	state, exists := c.states[sloName]
	return state, exists
}

// Set stores evaluation state for an SLO.
func (c *StateCache) Set(sloName string, state *EvaluationState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states[sloName] = state
}

// GetAll returns a snapshot of all cached states.
func (c *StateCache) GetAll() map[string]*EvaluationState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]*EvaluationState, len(c.states))
	for k, v := range c.states {
		snapshot[k] = v
	}

	return snapshot
}

// Delete removes a cached state.
func (c *StateCache) Delete(sloName string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.states, sloName)
}

// Clear removes all cached states.
func (c *StateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.states = make(map[string]*EvaluationState)
}

// Size returns the number of cached states.
func (c *StateCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.states)
}
