package pricing

import (
	"sync"
	"time"
)

// Rate is one resolved exchange rate.
type Rate struct {
	Currency  string    `json:"currency"`
	Value     float64   `json:"value"`
	FetchedAt time.Time `json:"fetched_at"`
}

// Cell is the versioned "latest rate" holder shared between the rate refresh
// flow and readers. Every refresh begins by bumping the version; a fetched
// rate only commits if no newer refresh began in the meantime, so a slow
// response for a superseded currency can never overwrite a newer rate.
type Cell struct {
	mu      sync.Mutex
	version uint64
	rate    *Rate
}

// Begin marks the start of a refresh and returns its version token.
func (c *Cell) Begin() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	return c.version
}

// Commit stores the rate if version is still the latest refresh.
// It reports whether the rate was stored.
func (c *Cell) Commit(version uint64, rate Rate) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if version != c.version {
		return false
	}
	c.rate = &rate
	return true
}

// Latest returns the most recently committed rate, if any.
func (c *Cell) Latest() (Rate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rate == nil {
		return Rate{}, false
	}
	return *c.rate, true
}
