package captcha

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the CAPTCHA schema up to date on the store's database.
func Migrate(store *PGStore) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("captcha: load migrations: %w", err)
	}

	driver, err := postgres.WithInstance(store.DB(), &postgres.Config{})
	if err != nil {
		return fmt.Errorf("captcha: migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("captcha: migration setup: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("captcha: migrate up: %w", err)
	}
	return nil
}
