package repository

import "time"

// Option applies a configuration option to the SQLStore.
type Option func(*SQLStore)

// WithMetricsUpdateInterval sets the interval for background gauge updates.
// Zero disables the updater.
func WithMetricsUpdateInterval(interval time.Duration) Option {
	return func(s *SQLStore) {
		if interval >= 0 {
			s.metricsUpdateInterval = interval
		}
	}
}

// WithClock overrides the time source used for stored timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLStore) {
		if now != nil {
			s.clockFn = now
		}
	}
}

// WithMaxOpenConns bounds the postgres pool. SQLite always uses one connection.
func WithMaxOpenConns(n int) Option {
	return func(s *SQLStore) {
		if n > 0 {
			s.maxOpenConns = n
		}
	}
}
