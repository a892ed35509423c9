package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	// Registers the "pgx" database/sql driver.
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/shivanshkc/robloxauth/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Connect opens the Postgres database, verifies the connection and applies all pending migrations.
func Connect(ctx context.Context, conf config.Config) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn(conf))
	if err != nil {
		return nil, fmt.Errorf("error in sql.Open call: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error in db.PingContext call: %w", err)
	}

	if err := Migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error in Migrate call: %w", err)
	}

	return db, nil
}

// Migrate applies the embedded migrations. Having nothing to apply is not an error.
func Migrate(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("error in iofs.New call: %w", err)
	}

	driver, err := migratepgx.WithInstance(db, &migratepgx.Config{})
	if err != nil {
		return fmt.Errorf("error in migratepgx.WithInstance call: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "pgx5", driver)
	if err != nil {
		return fmt.Errorf("error in migrate.NewWithInstance call: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error in m.Up call: %w", err)
	}

	version, dirty, _ := m.Version()
	slog.Info("database migrations applied", "version", version, "dirty", dirty)
	return nil
}

// dsn forms the Postgres connection string out of the configs.
func dsn(conf config.Config) string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(conf.Database.Username, conf.Database.Password),
		Host:   conf.Database.Addr,
		Path:   "/" + conf.Database.Database,
	}

	if conf.Database.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {conf.Database.SSLMode}}.Encode()
	}

	return u.String()
}
