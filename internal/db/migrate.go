package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/Spok95/drillcert/internal/db/migrations"
	"github.com/pressly/goose/v3"
)

var (
	gooseOnce     sync.Once
	gooseSetupErr error
)

// Migrate накатывает встроенные миграции goose.
func Migrate(ctx context.Context, database *sql.DB) error {
	gooseOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		gooseSetupErr = goose.SetDialect("postgres")
	})
	if gooseSetupErr != nil {
		return fmt.Errorf("goose dialect: %w", gooseSetupErr)
	}
	if err := goose.UpContext(ctx, database, "."); err != nil {
		return fmt.Errorf("goose up: %w", err)
	}
	return nil
}
