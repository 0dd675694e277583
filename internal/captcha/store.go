// Package captcha implements the connect-time CAPTCHA gate: users
// connecting on the protected ports must have solved a CAPTCHA recorded
// in PostgreSQL before registration is allowed. Verified addresses are
// cached in Redis so repeat connections skip the database, and per-IP
// checks are throttled to keep a reconnect loop from hammering it.
package captcha

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
)

// SuccessStore answers whether an IP has a solved CAPTCHA on record.
type SuccessStore interface {
	Verified(ctx context.Context, ip string) (bool, error)
}

// PGStore is the PostgreSQL-backed SuccessStore used in production.
type PGStore struct {
	db *sql.DB
}

// OpenPG opens the CAPTCHA database with the given conninfo and verifies
// connectivity.
func OpenPG(ctx context.Context, conninfo string) (*PGStore, error) {
	db, err := sql.Open("postgres", conninfo)
	if err != nil {
		return nil, fmt.Errorf("captcha: open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("captcha: ping postgres: %w", err)
	}
	return &PGStore{db: db}, nil
}

// DB exposes the underlying handle for the migration runner.
func (s *PGStore) DB() *sql.DB { return s.db }

// Close releases the database handle.
func (s *PGStore) Close() error { return s.db.Close() }

// Verified reports whether ip has a solved CAPTCHA on record.
func (s *PGStore) Verified(ctx context.Context, ip string) (bool, error) {
	const query = `
		SELECT EXISTS (
			SELECT 1 FROM captcha_success
			WHERE ip = $1 AND solved = TRUE
		)`

	var ok bool
	if err := s.db.QueryRowContext(ctx, query, ip).Scan(&ok); err != nil {
		return false, fmt.Errorf("captcha: query success: %w", err)
	}
	return ok, nil
}
