package ingest

import "sync"

// campaignLocks hands out one mutex per campaign uuid, used to serialise
// the graph+vector commit step of concurrent ingests against the same
// campaign — a policy addition, not a correctness requirement, since every
// graph write below is already an idempotent MATCH…MERGE…SET keyed by name
// (§5 "Per-campaign serialisation").
type campaignLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newCampaignLocks() *campaignLocks {
	return &campaignLocks{locks: make(map[string]*sync.Mutex)}
}

// lock blocks until campaignUUID's mutex is held and returns the unlock
// function.
func (c *campaignLocks) lock(campaignUUID string) func() {
	c.mu.Lock()
	l, ok := c.locks[campaignUUID]
	if !ok {
		l = &sync.Mutex{}
		c.locks[campaignUUID] = l
	}
	c.mu.Unlock()

	l.Lock()
	return l.Unlock
}
