package db

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	mysqlmigrate "github.com/golang-migrate/migrate/v4/database/mysql"
	pgmigrate "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
)

//go:embed migrations/postgres/*.sql migrations/mysql/*.sql
var migrationsFS embed.FS

type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator opens a dedicated connection for schema migrations.
// sqlite schemas are created with gorm AutoMigrate instead.
func NewMigrator(driver, dsn string) (*Migrator, error) {
	if dsn == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}
	if driver == "" {
		driver = DriverPostgres
	}

	var (
		sqlDB    *sql.DB
		dbDriver database.Driver
		dir      string
		err      error
	)

	switch driver {
	case DriverPostgres:
		dir = "migrations/postgres"
		sqlDB, err = sql.Open("postgres", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		dbDriver, err = pgmigrate.WithInstance(sqlDB, &pgmigrate.Config{})
	case DriverMySQL:
		dir = "migrations/mysql"
		cfg, perr := mysql.ParseDSN(dsn)
		if perr != nil {
			return nil, fmt.Errorf("parse mysql dsn: %w", perr)
		}
		cfg.MultiStatements = true
		cfg.ParseTime = true
		sqlDB, err = sql.Open("mysql", cfg.FormatDSN())
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		dbDriver, err = mysqlmigrate.WithInstance(sqlDB, &mysqlmigrate.Config{})
	default:
		return nil, fmt.Errorf("migrations are not supported for DB_DRIVER %q", driver)
	}
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migration driver: %w", err)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, driver, dbDriver)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("init migrations: %w", err)
	}

	return &Migrator{m: m}, nil
}

// Up applies every pending migration. No pending migrations is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (m *Migrator) Down() error {
	if err := m.m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("rollback migration: %w", err)
	}
	return nil
}

func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
