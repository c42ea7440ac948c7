package dedupe

import "time"

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps the number of live claims. Zero or less means unbounded.
func WithMaxSize(maxSize int) Option {
	return func(d *inMemoryDeduper) {
		d.maxSize = maxSize
	}
}

// WithTTL sets how long a claim lives before it may be taken over.
func WithTTL(ttl time.Duration) Option {
	return func(d *inMemoryDeduper) {
		if ttl > 0 {
			d.ttl = ttl
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(d *inMemoryDeduper) {
		if now != nil {
			d.now = now
		}
	}
}
