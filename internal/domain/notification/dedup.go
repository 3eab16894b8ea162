package notification

import "sync"

// KeyRegistry is the scheduler's idempotence set. Each key encodes a
// (condition, entity, threshold) tuple such as "goal-milestone-50:<goalID>";
// presence of a key suppresses re-sending that condition's notification until
// the registry is reset. Safe for concurrent use by both deadline evaluators.
type KeyRegistry struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func NewKeyRegistry() *KeyRegistry {
	return &KeyRegistry{keys: make(map[string]struct{})}
}

// Insert records key and reports whether it was newly added.
func (r *KeyRegistry) Insert(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.keys[key]; ok {
		return false
	}
	r.keys[key] = struct{}{}
	return true
}

// Contains reports whether key has already been recorded this epoch.
func (r *KeyRegistry) Contains(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.keys[key]
	return ok
}

// Reset clears the registry wholesale and returns how many keys were dropped.
// Run on a weekly schedule; a condition still active at reset time may notify
// once more afterwards, which is accepted.
func (r *KeyRegistry) Reset() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.keys)
	r.keys = make(map[string]struct{})
	return n
}

// Len returns the current number of recorded keys.
func (r *KeyRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.keys)
}
