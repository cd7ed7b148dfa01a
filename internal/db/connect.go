package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// драйвер pgx для database/sql
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open открывает пул соединений к Postgres через pgx и проверяет доступность.
func Open(ctx context.Context, dsn string, maxOpen int) (*sql.DB, error) {
	database, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if maxOpen > 0 {
		database.SetMaxOpenConns(maxOpen)
		database.SetMaxIdleConns(maxOpen / 2)
	}
	database.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := database.PingContext(pingCtx); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return database, nil
}
