// Package dedupe tracks keys that are currently claimed so the same piece of
// work is not started twice while it is still running.
package dedupe

import (
	"context"
	"sync"
	"time"
)

// Default claim-set configuration.
const (
	defaultMaxSize = 10_000
	defaultTTL     = 10 * time.Minute
)

// Token identifies one successful claim.
type Token uint64

// Deduper guards keys against concurrent duplicate work.
type Deduper interface {
	// Claim marks key as in flight. It returns false when key is already
	// claimed and the claim has not expired.
	Claim(ctx context.Context, key string) (Token, bool)

	// Release drops the claim identified by t so the key can be claimed
	// again. A claim that expired and was taken over is left alone.
	Release(ctx context.Context, key string, t Token)

	// Size returns the number of live claims.
	Size() int64
}

type claim struct {
	expires time.Time
	token   Token
}

// inMemoryDeduper keeps claims in a map stamped with their expiry.
// Expired claims are swept lazily when the set is full.
type inMemoryDeduper struct {
	mu      sync.Mutex
	claims  map[string]claim
	next    Token
	maxSize int
	ttl     time.Duration
	now     func() time.Time
}

// NewInMemoryDeduper creates a claim set with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{
		maxSize: defaultMaxSize,
		ttl:     defaultTTL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.claims = make(map[string]claim)
	return d
}

func (d *inMemoryDeduper) Claim(_ context.Context, key string) (Token, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if c, ok := d.claims[key]; ok && now.Before(c.expires) {
		return 0, false
	}

	if d.maxSize > 0 && len(d.claims) >= d.maxSize {
		d.sweep(now)
		if len(d.claims) >= d.maxSize {
			return 0, false
		}
	}

	d.next++
	d.claims[key] = claim{expires: now.Add(d.ttl), token: d.next}
	return d.next, true
}

func (d *inMemoryDeduper) Release(_ context.Context, key string, t Token) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.claims[key]; ok && c.token == t {
		delete(d.claims, key)
	}
}

func (d *inMemoryDeduper) Size() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(len(d.claims))
}

// sweep drops expired claims. Caller holds d.mu.
func (d *inMemoryDeduper) sweep(now time.Time) {
	for k, c := range d.claims {
		if !now.Before(c.expires) {
			delete(d.claims, k)
		}
	}
}
