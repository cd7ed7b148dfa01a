//go:build testutil
// +build testutil

// Package testdb поднимает одноразовый Postgres в контейнере и накатывает миграции.
package testdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/Spok95/drillcert/internal/db"
)

const (
	image = "postgres:17-alpine"
	// пул больше дефолта: тесты гонок открывают десятки транзакций разом
	maxOpenConns = 40
)

type DBHandle struct {
	DB        *sql.DB
	Container *postgres.PostgresContainer
	cancel    context.CancelFunc
}

func (h *DBHandle) Close() {
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.Container != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = h.Container.Terminate(ctx)
	}
	if h.cancel != nil {
		h.cancel()
	}
}

// Start — контейнер, соединение через lib/pq и схема из встроенных миграций.
// При любой ошибке уже поднятое освобождается.
func Start(ctx context.Context) (*DBHandle, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	h := &DBHandle{cancel: cancel}

	pg, err := postgres.RunContainer(ctx,
		tc.WithImage(image),
		postgres.WithDatabase("drillcert"),
		postgres.WithUsername("drillcert"),
		postgres.WithPassword("drillcert"),
		tc.WithWaitStrategy(
			// первый «ready» пишет initdb до рестарта сервера
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("start postgres: %w", err)
	}
	h.Container = pg

	uri, err := pg.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		h.Close()
		return nil, fmt.Errorf("connection string: %w", err)
	}
	if h.DB, err = sql.Open("postgres", uri); err != nil {
		h.Close()
		return nil, err
	}
	h.DB.SetMaxOpenConns(maxOpenConns)

	if err := waitReady(ctx, h.DB); err != nil {
		h.Close()
		return nil, err
	}
	if err := db.Migrate(ctx, h.DB); err != nil {
		h.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return h, nil
}

func waitReady(ctx context.Context, database *sql.DB) error {
	t := time.NewTicker(200 * time.Millisecond)
	defer t.Stop()
	for {
		if err := database.PingContext(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Join(errors.New("db not ready"), ctx.Err())
		case <-t.C:
		}
	}
}
