// Package pg provides PostgreSQL connectivity and the durable stores for
// devices, sessions, events, and metric aggregates.
//
// Connect creates a pgx connection pool with exponential backoff retry and
// a connectivity check; Migrate applies the embedded goose schema; and
// Healthcheck returns a probe for readiness endpoints:
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer pool.Close()
//
//	if err := pg.Migrate(ctx, pool, cfg, log); err != nil {
//		return err
//	}
//
//	devices := pg.NewDeviceStore(pool)
//	sessions := pg.NewSessionStore(pool)
//
// Stores resolve their querier per call: a transaction attached with WithTx
// takes precedence over the pool, so multi-store writes can share one
// transaction:
//
//	tx, _ := pool.Begin(ctx)
//	defer tx.Rollback(ctx)
//	ctx = pg.WithTx(ctx, tx)
//	// ... store calls join tx ...
//	tx.Commit(ctx)
//
// Error classification helpers (IsNotFoundError, IsDuplicateKeyError,
// IsForeignKeyViolationError, IsTxClosedError) cover the common pgx error
// patterns.
package pg
