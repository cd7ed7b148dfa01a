package scoring

import (
	"time"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/models"
)

// EnsureWritable — любая запись в листы заблокированной сессии запрещена.
func EnsureWritable(s models.ScoringSession) error {
	if s.IsLocked() {
		return &apperr.SessionLockedError{SessionID: s.ID}
	}
	return nil
}

// StartOnFirstEvaluation переводит not_started → in_progress при создании первого листа.
// Возвращает true, если статус изменился.
func StartOnFirstEvaluation(s *models.ScoringSession) bool {
	if s.Status != models.SessionNotStarted {
		return false
	}
	s.Status = models.SessionInProgress
	return true
}

// Complete — явный переход in_progress → completed.
func Complete(s *models.ScoringSession) error {
	if s.Status != models.SessionInProgress {
		return transitionErr(s, models.SessionCompleted)
	}
	s.Status = models.SessionCompleted
	return nil
}

// Reopen — обратный переход completed → in_progress.
func Reopen(s *models.ScoringSession) error {
	if s.Status != models.SessionCompleted {
		return transitionErr(s, models.SessionInProgress)
	}
	s.Status = models.SessionInProgress
	return nil
}

// Lock — односторонняя блокировка из in_progress или completed.
func Lock(s *models.ScoringSession, by int64, now time.Time) error {
	switch s.Status {
	case models.SessionLocked:
		return &apperr.AlreadyLockedError{SessionID: s.ID, LockedAt: s.LockedAt}
	case models.SessionInProgress, models.SessionCompleted:
	default:
		return transitionErr(s, models.SessionLocked)
	}
	at := now.UTC()
	s.Status = models.SessionLocked
	s.LockedAt = &at
	s.LockedBy = &by
	return nil
}

func transitionErr(s *models.ScoringSession, to models.SessionStatus) error {
	return &apperr.InvalidTransitionError{SessionID: s.ID, From: string(s.Status), To: string(to)}
}
