package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "github.com/lib/pq"              // registers "postgres"
)

const (
	DriverPgx      = "pgx"
	DriverPostgres = "postgres"
)

// NewDBConnection opens the pool with the chosen driver and pings it.
func NewDBConnection(driver, connString string) (*sql.DB, error) {
	switch driver {
	case "":
		driver = DriverPgx
	case DriverPgx, DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q (use %s or %s)", driver, DriverPgx, DriverPostgres)
	}

	db, err := sql.Open(driver, connString)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
