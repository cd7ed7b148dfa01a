package engine

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/metrics"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/scoring"
)

// OpenSession — сессия мероприятия, создаётся при первом обращении. Идемпотентна.
func (s *Service) OpenSession(ctx context.Context, eventID int64) (models.ScoringSession, error) {
	ctx, log := s.begin(ctx, "open_session")
	if _, err := db.GetEventContext(ctx, s.db, eventID); err != nil {
		return models.ScoringSession{}, s.fail(ctx, log, err)
	}
	sess, created, err := db.EnsureSessionContext(ctx, s.db, eventID)
	if err != nil {
		return models.ScoringSession{}, s.fail(ctx, log, err)
	}
	if created {
		log.Info("scoring session opened", zap.Int64("session_id", sess.ID), zap.Int64("event_id", eventID))
	}
	return sess, nil
}

func (s *Service) GetSession(ctx context.Context, sessionID int64) (models.ScoringSession, error) {
	return db.GetSessionContext(ctx, s.db, sessionID)
}

func (s *Service) GetSessionByEvent(ctx context.Context, eventID int64) (models.ScoringSession, error) {
	return db.GetSessionByEventContext(ctx, s.db, eventID)
}

// Complete — in_progress → completed.
func (s *Service) Complete(ctx context.Context, sessionID int64) (models.ScoringSession, error) {
	return s.transition(ctx, "complete_session", sessionID, func(sess *models.ScoringSession, _ int64) error {
		return scoring.Complete(sess)
	})
}

// Reopen — completed → in_progress.
func (s *Service) Reopen(ctx context.Context, sessionID int64) (models.ScoringSession, error) {
	return s.transition(ctx, "reopen_session", sessionID, func(sess *models.ScoringSession, _ int64) error {
		return scoring.Reopen(sess)
	})
}

// Lock — необратимая блокировка. Берёт строку сессии FOR UPDATE, поэтому ждёт
// завершения уже начатых записей в листы, а последующие увидят locked.
func (s *Service) Lock(ctx context.Context, sessionID int64) (models.ScoringSession, error) {
	sess, err := s.transition(ctx, "lock_session", sessionID, func(sess *models.ScoringSession, op int64) error {
		return scoring.Lock(sess, op, s.now())
	})
	if err == nil {
		metrics.SessionsLocked.Inc()
	}
	return sess, err
}

func (s *Service) transition(ctx context.Context, op string, sessionID int64, apply func(*models.ScoringSession, int64) error) (models.ScoringSession, error) {
	ctx, log := s.begin(ctx, op)
	operatorID, err := operator(ctx)
	if err != nil {
		return models.ScoringSession{}, s.fail(ctx, log, err)
	}

	var out models.ScoringSession
	err = s.tx(ctx, func(tx *sql.Tx) error {
		sess, err := db.LockSessionContext(ctx, tx, sessionID, db.LockExclusive)
		if err != nil {
			return err
		}
		from := sess.Status
		if err := apply(&sess, operatorID); err != nil {
			return err
		}
		if err := db.SaveSessionStatusContext(ctx, tx, &sess); err != nil {
			return err
		}
		log.Info("session status changed",
			zap.Int64("session_id", sess.ID),
			zap.String("from", string(from)),
			zap.String("to", string(sess.Status)))
		out = sess
		return nil
	})
	if err != nil {
		return models.ScoringSession{}, s.fail(ctx, log, err)
	}
	return out, nil
}
