package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
)

const sessionColumns = `id, event_id, status, locked_at, locked_by, created_at, updated_at`

func scanSession(row interface{ Scan(dest ...any) error }) (models.ScoringSession, error) {
	var (
		s        models.ScoringSession
		lockedAt sql.NullTime
		lockedBy sql.NullInt64
	)
	if err := row.Scan(&s.ID, &s.EventID, &s.Status, &lockedAt, &lockedBy, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return models.ScoringSession{}, err
	}
	s.LockedAt = timePtr(lockedAt)
	s.LockedBy = int64Ptr(lockedBy)
	return s, nil
}

// EnsureSessionContext — сессия мероприятия; создаёт not_started, если её ещё нет.
// Одновременные вызовы сходятся к одной строке за счёт UNIQUE(event_id).
func EnsureSessionContext(ctx context.Context, q Querier, eventID int64) (models.ScoringSession, bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	s, err := scanSession(q.QueryRowContext(ctx, `
		INSERT INTO scoring_sessions (event_id) VALUES ($1)
		ON CONFLICT (event_id) DO NOTHING
		RETURNING `+sessionColumns, eventID))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.ScoringSession{}, false, err
	}
	s, err = scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM scoring_sessions WHERE event_id = $1`, eventID))
	return s, false, err
}

func GetSessionContext(ctx context.Context, q Querier, sessionID int64) (models.ScoringSession, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	s, err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM scoring_sessions WHERE id = $1`, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScoringSession{}, apperr.NotFound("scoring_session", sessionID)
	}
	return s, err
}

func GetSessionByEventContext(ctx context.Context, q Querier, eventID int64) (models.ScoringSession, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	s, err := scanSession(q.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM scoring_sessions WHERE event_id = $1`, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScoringSession{}, &apperr.NotFoundError{Entity: "scoring_session", ID: "event:" + itoa(eventID)}
	}
	return s, err
}

// LockMode — режим блокировки строки сессии внутри транзакции.
type LockMode int

const (
	// LockShare — писатели листов: друг другу не мешают, но ждут Lock.
	LockShare LockMode = iota
	// LockExclusive — смена статуса сессии.
	LockExclusive
)

// LockSessionContext читает строку сессии под FOR SHARE / FOR UPDATE.
// Любая запись в лист идёт под LockShare, поэтому Lock видит все уже начатые отправки
// завершёнными, а начатые после Lock видят статус locked.
func LockSessionContext(ctx context.Context, tx *sql.Tx, sessionID int64, mode LockMode) (models.ScoringSession, error) {
	clause := " FOR SHARE"
	if mode == LockExclusive {
		clause = " FOR UPDATE"
	}
	s, err := scanSession(tx.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM scoring_sessions WHERE id = $1`+clause, sessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ScoringSession{}, apperr.NotFound("scoring_session", sessionID)
	}
	return s, err
}

// SaveSessionStatusContext записывает статус и поля блокировки.
// Переход из locked запрещён на уровне запроса.
func SaveSessionStatusContext(ctx context.Context, q Querier, s *models.ScoringSession) error {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	err := q.QueryRowContext(ctx, `
		UPDATE scoring_sessions
		SET status = $1, locked_at = $2, locked_by = $3, updated_at = now()
		WHERE id = $4 AND status <> 'locked'
		RETURNING updated_at
	`, string(s.Status), nullTime(s.LockedAt), nullInt64(s.LockedBy), s.ID).Scan(&s.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return &apperr.SessionLockedError{SessionID: s.ID}
	}
	return err
}
