// Package pg opens and migrates the PostgreSQL pool backing the organization
// directory and membership store.
//
// Connect builds a *pgxpool.Pool from Config (populated from PG_* environment
// variables through caarlos0/env), retrying with a linear back-off until the
// database answers a ping. Migrate runs goose migrations from an fs.FS so each
// store can ship its schema embedded in the binary. Healthcheck returns a
// probe suitable for readiness endpoints.
//
// # Usage
//
//	pool, err := pg.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	if err := pg.Migrate(ctx, pool, pgstore.Migrations, "migrations", cfg, log); err != nil {
//		return err
//	}
//
// # Error Handling
//
// All failures wrap one of the package sentinels (ErrFailedToOpenDBConnection,
// ErrFailedToApplyMigrations, ...) with errors.Join, so callers can branch with
// errors.Is while keeping the driver error for logs. IsNotFoundError,
// IsDuplicateKeyError and IsForeignKeyViolationError classify driver errors.
package pg
