// Package cache keeps computed owner balances for a bounded time.
package cache

import (
	"math/big"
	"sync"
	"time"

	"github.com/mrz1836/blockscope/internal/chain"
)

// Balance is a computed balance for one owner.
type Balance struct {
	Address   string      `json:"address"`
	Curve     chain.Curve `json:"curve"`
	Total     *big.Int    `json:"total"`
	UTXOIDs   []string    `json:"utxo_ids"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// Clone returns a deep copy of the balance.
func (b Balance) Clone() Balance {
	if b.Total != nil {
		b.Total = new(big.Int).Set(b.Total)
	}
	b.UTXOIDs = append([]string(nil), b.UTXOIDs...)
	return b
}

// BalanceCache holds balances for ttl after they were computed. With a ttl
// of zero or less nothing is ever served fresh.
type BalanceCache struct {
	mu      sync.Mutex
	entries map[string]Balance
	ttl     time.Duration
	now     func() time.Time
}

// NewBalanceCache creates an empty cache whose entries stay fresh for ttl.
func NewBalanceCache(ttl time.Duration) *BalanceCache {
	return &BalanceCache{
		entries: make(map[string]Balance),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Key generates a cache key for an owner.
func Key(curve chain.Curve, address string) string {
	return curve.String() + ":" + chain.NormalizeAddress(address)
}

// Fresh returns a copy of the balance of the owner if it was computed no
// longer than ttl ago.
func (c *BalanceCache) Fresh(curve chain.Curve, address string) (*Balance, bool) {
	if c.ttl <= 0 {
		return nil, false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[Key(curve, address)]
	if !ok || c.now().Sub(entry.UpdatedAt) > c.ttl {
		return nil, false
	}
	out := entry.Clone()
	return &out, true
}

// Set stamps entry with the current time, stores a copy and returns it.
// Entries past their ttl are dropped on the way.
func (c *BalanceCache) Set(entry Balance) Balance {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.prune(now)

	entry = entry.Clone()
	entry.UpdatedAt = now
	if c.ttl > 0 {
		c.entries[Key(entry.Curve, entry.Address)] = entry
	}
	return entry.Clone()
}

func (c *BalanceCache) prune(now time.Time) {
	cutoff := now.Add(-c.ttl)
	for key, entry := range c.entries {
		if entry.UpdatedAt.Before(cutoff) {
			delete(c.entries, key)
		}
	}
}
