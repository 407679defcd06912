package attend

import (
	"fmt"
	"sync"
	"time"
)

// DuplicateCache blocks a repeat submission of the same token by the same
// member within a short window. Entries are scoped per member: a room of
// devices scanning one beacon must all get through, while one member
// double-tapping must not. It is a courtesy guard only; the authoritative
// duplicate check is owned by the persistence layer. Entries do not survive
// a process restart.
type DuplicateCache struct {
	mu     sync.Mutex
	window time.Duration
	seen   map[string]time.Time
	now    func() time.Time
}

func NewDuplicateCache(window time.Duration) *DuplicateCache {
	return &DuplicateCache{
		window: window,
		seen:   make(map[string]time.Time),
		now:    time.Now,
	}
}

func cacheKey(memberID int64, tok string) string {
	return fmt.Sprintf("%d:%s", memberID, tok)
}

// CheckAndRecord reports whether tok is fresh for this member and, if so,
// records the submission timestamp in the same critical section. Two
// near-simultaneous calls for the same (member, token) pair can never both
// see "no prior submission".
func (c *DuplicateCache) CheckAndRecord(memberID int64, tok string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.pruneLocked(now)

	key := cacheKey(memberID, tok)
	if last, ok := c.seen[key]; ok && now.Sub(last) < c.window {
		return false
	}
	c.seen[key] = now
	return true
}

// Forget removes a member's entry so they may retry. Used only after
// transport-level failures, where no submission reached storage.
func (c *DuplicateCache) Forget(memberID int64, tok string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, cacheKey(memberID, tok))
}

// Reset clears the window entirely. Explicit test/debug hook; the window is
// never cleared silently.
func (c *DuplicateCache) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = make(map[string]time.Time)
}

func (c *DuplicateCache) pruneLocked(now time.Time) {
	for key, last := range c.seen {
		if now.Sub(last) >= c.window {
			delete(c.seen, key)
		}
	}
}
