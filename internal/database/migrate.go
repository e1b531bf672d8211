package database

import (
	"database/sql"
	"path/filepath"

	"github.com/bistro-pos/api/internal/logger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

// Migrate applies every pending up migration found in dir. A database that
// is already current is not an error.
func Migrate(databaseURL, dir string) error {
	// migrate drives database/sql, so it goes through lib/pq rather than pgx.
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return errors.Wrap(err, "open db for migrations")
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return errors.Wrap(err, "create migrate driver")
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return errors.Wrapf(err, "resolve migrations dir %s", dir)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(abs), "postgres", driver)
	if err != nil {
		return errors.Wrap(err, "create migrate instance")
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "run migrations")
	}
	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return errors.Wrap(err, "read migration version")
	}
	logger.L().Infow("migrations applied", "version", version, "dirty", dirty)
	return nil
}
