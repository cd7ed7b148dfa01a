package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
)

func GetUserContext(ctx context.Context, q Querier, id int64) (models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var (
		u  models.User
		tg sql.NullInt64
	)
	err := q.QueryRowContext(ctx, `SELECT id, name, telegram_id FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &tg)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, apperr.NotFound("user", id)
	}
	if err != nil {
		return models.User{}, err
	}
	u.TelegramID = int64Ptr(tg)
	return u, nil
}

// CreateUserContext — для сидов и тестов; основная регистрация живёт во внешней системе.
func CreateUserContext(ctx context.Context, q Querier, name string, telegramID *int64) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO users (name, telegram_id) VALUES ($1, $2)
		ON CONFLICT (telegram_id) DO UPDATE SET name = EXCLUDED.name
		RETURNING id
	`, name, nullInt64(telegramID)).Scan(&id)
	return id, err
}
