package gate

import "sync"

// Quota is the run-wide registration budget
type Quota struct {
	mu        sync.Mutex
	remaining int
}

// NewQuota creates a quota allowing max registrations.
// A non-positive max is exhausted from the start.
func NewQuota(max int) *Quota {
	if max < 0 {
		max = 0
	}
	return &Quota{remaining: max}
}

// Remaining returns how many registrations are left.
func (q *Quota) Remaining() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.remaining
}

// Exhausted reports whether no registrations are left.
func (q *Quota) Exhausted() bool {
	return q.Remaining() == 0
}

// take consumes one registration. It returns false when none is left.
func (q *Quota) take() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.remaining == 0 {
		return false
	}
	q.remaining--
	return true
}
