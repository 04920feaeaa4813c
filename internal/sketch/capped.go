// Package sketch provides bounded-memory distinct-value tracking.
package sketch

// Capped is a set of strings that silently stops accepting new members once
// it holds Cap() elements. Len is exact until the set is at capacity; after
// that it is a lower bound on the true number of distinct values offered.
type Capped struct {
	limit   int
	members map[string]struct{}
	dropped int
}

// NewCapped returns an empty set holding at most limit members.
// A non-positive limit yields a set that accepts nothing.
func NewCapped(limit int) *Capped {
	if limit < 0 {
		limit = 0
	}
	return &Capped{limit: limit, members: make(map[string]struct{})}
}

// Add inserts key and reports whether the set changed. Keys already present
// are no-ops; new keys are ignored once the set is at capacity.
func (c *Capped) Add(key string) bool {
	if _, ok := c.members[key]; ok {
		return false
	}
	if len(c.members) >= c.limit {
		c.dropped++
		return false
	}
	c.members[key] = struct{}{}
	return true
}

// Contains reports whether key was recorded.
func (c *Capped) Contains(key string) bool {
	_, ok := c.members[key]
	return ok
}

// Len returns the number of recorded members.
func (c *Capped) Len() int { return len(c.members) }

// Cap returns the capacity.
func (c *Capped) Cap() int { return c.limit }

// AtCapacity reports whether further new keys will be ignored.
func (c *Capped) AtCapacity() bool { return len(c.members) >= c.limit }

// Dropped returns how many new keys were rejected because the set was full.
// A non-zero value means Len understates distinctness.
func (c *Capped) Dropped() int { return c.dropped }
