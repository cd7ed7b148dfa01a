package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
)

// GetAttendanceContext — запись посещаемости; nil, если отметки нет.
func GetAttendanceContext(ctx context.Context, q Querier, eventID, userID int64) (*models.AttendanceRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	r := models.AttendanceRecord{EventID: eventID, UserID: userID}
	err := q.QueryRowContext(ctx, `
		SELECT status FROM attendance WHERE event_id = $1 AND user_id = $2
	`, eventID, userID).Scan(&r.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListAttendanceContext — все отметки мероприятия по user_id.
func ListAttendanceContext(ctx context.Context, q Querier, eventID int64) (map[int64]models.AttendanceRecord, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := q.QueryContext(ctx, `SELECT user_id, status FROM attendance WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]models.AttendanceRecord)
	for rows.Next() {
		r := models.AttendanceRecord{EventID: eventID}
		if err := rows.Scan(&r.UserID, &r.Status); err != nil {
			return nil, err
		}
		out[r.UserID] = r
	}
	return out, rows.Err()
}

// MarkAttendanceContext — запись со стороны системы посещаемости. Для сидов и тестов.
func MarkAttendanceContext(ctx context.Context, q Querier, eventID, userID int64, status models.AttendanceStatus) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	_, err := q.ExecContext(ctx, `
		INSERT INTO attendance (event_id, user_id, status) VALUES ($1, $2, $3)
		ON CONFLICT (event_id, user_id) DO UPDATE SET status = EXCLUDED.status, marked_at = now()
	`, eventID, userID, string(status))
	return err
}
