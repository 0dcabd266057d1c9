package application

import (
	"sync"

	"ouvrage/contexts/program-oversight/delegation-authority/ports"
)

// VerifyCache memoizes chain verification results keyed by head hash. A tip
// change produces a new key, so entries self-invalidate; the map is only
// bounded to keep long-running processes flat.
type VerifyCache struct {
	mu      sync.Mutex
	entries map[string]ports.AuditReport
	max     int
}

func NewVerifyCache(max int) *VerifyCache {
	if max <= 0 {
		max = 256
	}
	return &VerifyCache{
		entries: make(map[string]ports.AuditReport),
		max:     max,
	}
}

func (c *VerifyCache) Get(headHash string) (ports.AuditReport, bool) {
	if c == nil || headHash == "" {
		return ports.AuditReport{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	report, ok := c.entries[headHash]
	return report, ok
}

func (c *VerifyCache) Put(headHash string, report ports.AuditReport) {
	if c == nil || headHash == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= c.max {
		for key := range c.entries {
			delete(c.entries, key)
			break
		}
	}
	c.entries[headHash] = report
}
