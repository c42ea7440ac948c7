package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okian/arena/pkg/logger"
	"github.com/okian/arena/pkg/metrics"
)

const (
	defaultMetricsUpdateInterval = 15 * time.Second
	defaultMaxOpenConns          = 10
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements Queries on top of a querier.
type queries struct {
	q   querier
	d   *dialect
	now func() time.Time
}

func (q *queries) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return q.q.ExecContext(ctx, q.d.rebind(query), args...)
}

func (q *queries) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return q.q.QueryContext(ctx, q.d.rebind(query), args...)
}

func (q *queries) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return q.q.QueryRowContext(ctx, q.d.rebind(query), args...)
}

// SQLStore is a Store backed by database/sql.
type SQLStore struct {
	queries

	db                    *sql.DB
	dialect               *dialect
	clockFn               func() time.Time
	maxOpenConns          int
	metricsUpdateInterval time.Duration
	stop                  chan struct{}
	done                  chan struct{}
}

// Open connects to driver ("postgres" or "sqlite") at dsn. For sqlite the
// dsn is a file path or ":memory:".
func Open(ctx context.Context, driver, dsn string, opts ...Option) (*SQLStore, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, driver)
	}
	s := &SQLStore{
		dialect:               d,
		clockFn:               time.Now,
		maxOpenConns:          defaultMaxOpenConns,
		metricsUpdateInterval: defaultMetricsUpdateInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	if d == sqliteDialect {
		dsn = sqliteDSN(dsn)
	}
	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("repository: open %s: %w", d.name, err)
	}
	if d == sqliteDialect {
		// One connection serializes writers and keeps :memory: databases alive.
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("repository: ping %s: %w", d.name, err)
	}

	s.db = db
	s.queries = queries{q: db, d: d, now: s.clock}
	if s.metricsUpdateInterval > 0 {
		s.stop = make(chan struct{})
		s.done = make(chan struct{})
		go s.startMetricsUpdater(context.WithoutCancel(ctx))
	}
	logger.Get().Info(ctx, "store opened", logger.String("driver", d.name))
	return s, nil
}

func (s *SQLStore) clock() time.Time { return s.clockFn().UTC() }

// Driver returns the dialect name.
func (s *SQLStore) Driver() string { return s.dialect.name }

// Migrate applies the embedded schema for the active dialect.
func (s *SQLStore) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.statements() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("repository: migrate: %w", err)
		}
	}
	return nil
}

// InTx runs fn inside one transaction. Any error from fn rolls back.
func (s *SQLStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) (err error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreLatency("tx", float64(time.Since(start).Microseconds())/1000)
	}()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("repository: begin: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err := fn(ctx, &queries{q: sqlTx, d: s.dialect, now: s.clock}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("repository: commit: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close stops background work and closes the pool.
func (s *SQLStore) Close() error {
	if s.stop != nil {
		close(s.stop)
		<-s.done
		s.stop = nil
	}
	return s.db.Close()
}

// startMetricsUpdater periodically publishes the catalog size.
func (s *SQLStore) startMetricsUpdater(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.metricsUpdateInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
			s.updateMetrics(ctx)
		}
	}
}

func (s *SQLStore) updateMetrics(ctx context.Context) {
	n, err := s.CountModels(ctx)
	if err != nil {
		metrics.RecordErrorByComponent("repository", "count_models")
		return
	}
	metrics.UpdateTotalModels(n)
}
