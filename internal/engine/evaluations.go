package engine

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/eligibility"
	"github.com/Spok95/drillcert/internal/metrics"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/scoring"
)

// SheetRef адресует лист участника в сессии. ExpectedVersion — необязательная
// проверка, что лист не менялся с момента чтения.
type SheetRef struct {
	SessionID       int64
	UserID          int64
	ExpectedVersion *int64
}

type ScoreInput struct {
	SheetRef
	Criterion string
	Score     int
	Comment   *string
}

// SubmitResult — итог отправки или утверждения: лист, решение о допуске
// и сертификат, если он выдан автоматически.
type SubmitResult struct {
	Evaluation  models.ParticipantEvaluation `json:"evaluation"`
	Eligibility models.EligibilityStatus     `json:"eligibility"`
	Reason      eligibility.Reason           `json:"reason"`
	Certificate *models.IssuedCertificate    `json:"certificate,omitempty"`
}

// GetEvaluation — лист участника; NotFound, если оценок ещё не было.
func (s *Service) GetEvaluation(ctx context.Context, sessionID, userID int64) (models.ParticipantEvaluation, error) {
	ev, err := db.FindEvaluationContext(ctx, s.db, sessionID, userID)
	if err != nil {
		return models.ParticipantEvaluation{}, err
	}
	if ev == nil {
		return models.ParticipantEvaluation{}, &apperr.NotFoundError{
			Entity: "participant_evaluation", ID: itoa(sessionID) + "/" + itoa(userID),
		}
	}
	return *ev, nil
}

// lockForWrite берёт строку сессии для записи в лист. Пока сессия not_started,
// первая запись переводит её в in_progress, поэтому нужна исключительная блокировка:
// два писателя с FOR SHARE, одновременно обновляющие строку, взаимно заблокируются.
func lockForWrite(ctx context.Context, tx *sql.Tx, sessionID int64) (models.ScoringSession, error) {
	peek, err := db.GetSessionContext(ctx, tx, sessionID)
	if err != nil {
		return models.ScoringSession{}, err
	}
	mode := db.LockShare
	if peek.Status == models.SessionNotStarted {
		mode = db.LockExclusive
	}
	return db.LockSessionContext(ctx, tx, sessionID, mode)
}

// RecordScore записывает оценку по критерию, создавая черновик листа при необходимости.
func (s *Service) RecordScore(ctx context.Context, in ScoreInput) (models.ParticipantEvaluation, error) {
	ctx, log := s.begin(ctx, "record_score")
	if _, err := operator(ctx); err != nil {
		return models.ParticipantEvaluation{}, s.fail(ctx, log, err)
	}
	in.Criterion = strings.TrimSpace(in.Criterion)
	defer s.sheets.lock(sheetKey{in.SessionID, in.UserID})()

	var out models.ParticipantEvaluation
	err := s.tx(ctx, func(tx *sql.Tx) error {
		sess, err := lockForWrite(ctx, tx, in.SessionID)
		if err != nil {
			return err
		}
		event, err := db.GetEventContext(ctx, tx, sess.EventID)
		if err != nil {
			return err
		}
		if err := scoring.ValidateScore(event.Scenario, in.Criterion, in.Score); err != nil {
			return err
		}
		if err := scoring.EnsureWritable(sess); err != nil {
			return err
		}
		if _, err := db.GetUserContext(ctx, tx, in.UserID); err != nil {
			return err
		}
		ev, created, err := db.EnsureEvaluationContext(ctx, tx, sess.ID, in.UserID)
		if err != nil {
			return err
		}
		if err := checkVersion(ev, in.ExpectedVersion); err != nil {
			return err
		}
		if ev.Status == models.EvaluationSubmitted {
			return &apperr.EvaluationSubmittedError{EvaluationID: ev.ID}
		}
		if created && scoring.StartOnFirstEvaluation(&sess) {
			if err := db.SaveSessionStatusContext(ctx, tx, &sess); err != nil {
				return err
			}
			log.Info("session started", zap.Int64("session_id", sess.ID))
		}
		if err := db.UpsertScoreContext(ctx, tx, ev, in.Criterion, models.CriterionScore{Score: in.Score, Comment: in.Comment}); err != nil {
			return err
		}
		out = *ev
		return nil
	})
	if err != nil {
		return models.ParticipantEvaluation{}, s.fail(ctx, log, err)
	}
	return out, nil
}

// SetFeedback — общий комментарий к листу. Те же правила блокировки и версии, что у оценок.
func (s *Service) SetFeedback(ctx context.Context, ref SheetRef, feedback *string) (models.ParticipantEvaluation, error) {
	ctx, log := s.begin(ctx, "set_feedback")
	if _, err := operator(ctx); err != nil {
		return models.ParticipantEvaluation{}, s.fail(ctx, log, err)
	}
	if feedback != nil && strings.TrimSpace(*feedback) == "" {
		feedback = nil
	}
	defer s.sheets.lock(sheetKey{ref.SessionID, ref.UserID})()

	var out models.ParticipantEvaluation
	err := s.tx(ctx, func(tx *sql.Tx) error {
		sess, err := lockForWrite(ctx, tx, ref.SessionID)
		if err != nil {
			return err
		}
		if err := scoring.EnsureWritable(sess); err != nil {
			return err
		}
		if _, err := db.GetUserContext(ctx, tx, ref.UserID); err != nil {
			return err
		}
		ev, created, err := db.EnsureEvaluationContext(ctx, tx, sess.ID, ref.UserID)
		if err != nil {
			return err
		}
		if err := checkVersion(ev, ref.ExpectedVersion); err != nil {
			return err
		}
		if created && scoring.StartOnFirstEvaluation(&sess) {
			if err := db.SaveSessionStatusContext(ctx, tx, &sess); err != nil {
				return err
			}
		}
		if err := db.SetFeedbackContext(ctx, tx, ev, feedback); err != nil {
			return err
		}
		out = *ev
		return nil
	})
	if err != nil {
		return models.ParticipantEvaluation{}, s.fail(ctx, log, err)
	}
	return out, nil
}

// Submit считает агрегаты, отправляет лист и тут же, в той же транзакции,
// обрабатывает событие отправки: вызывающий видит либо «отправлен», либо
// «отправлен и выдан», но никогда не половину выдачи.
func (s *Service) Submit(ctx context.Context, ref SheetRef) (SubmitResult, error) {
	ctx, log := s.begin(ctx, "submit_evaluation")
	operatorID, err := operator(ctx)
	if err != nil {
		return SubmitResult{}, s.fail(ctx, log, err)
	}
	defer s.sheets.lock(sheetKey{ref.SessionID, ref.UserID})()

	var (
		res   SubmitResult
		event models.Event
		diags []models.RenderDiagnostic
	)
	err = s.tx(ctx, func(tx *sql.Tx) error {
		sess, err := db.LockSessionContext(ctx, tx, ref.SessionID, db.LockShare)
		if err != nil {
			return err
		}
		if err := scoring.EnsureWritable(sess); err != nil {
			return err
		}
		if event, err = db.GetEventContext(ctx, tx, sess.EventID); err != nil {
			return err
		}
		ev, err := db.LockEvaluationContext(ctx, tx, sess.ID, ref.UserID)
		if err != nil {
			return err
		}
		if ev == nil {
			// оценок нет совсем: не хватает всех критериев
			return &apperr.IncompleteScoresError{Missing: event.Scenario.CriterionNames()}
		}
		if err := checkVersion(ev, ref.ExpectedVersion); err != nil {
			return err
		}
		totals, err := scoring.Finalize(event.Scenario, ev.Scores)
		if err != nil {
			return err
		}
		scoring.Apply(ev, totals)
		if ev.SubmittedAt == nil {
			at := s.now().UTC()
			ev.SubmittedAt = &at
		}
		ev.SubmittedBy = &operatorID
		if err := db.SaveSubmissionContext(ctx, tx, ev); err != nil {
			return err
		}

		outcome, err := s.onSubmitted(ctx, tx, log, models.SubmissionEvent{Evaluation: *ev, Event: event, OperatorID: operatorID})
		if err != nil {
			return err
		}
		res = outcome.result(*ev)
		diags = outcome.diagnostics
		return nil
	})
	if err != nil {
		return SubmitResult{}, s.fail(ctx, log, err)
	}

	metrics.EvaluationsSubmitted.WithLabelValues(string(*res.Evaluation.Result)).Inc()
	log.Info("evaluation submitted",
		zap.Int64("evaluation_id", res.Evaluation.ID),
		zap.Int("total", res.Evaluation.TotalScore),
		zap.Float64("percentage", res.Evaluation.Percentage),
		zap.String("eligibility", string(res.Eligibility)),
		zap.String("reason", string(res.Reason)))
	s.afterAutomation(ctx, log, res, event, diags)
	return res, nil
}

// Approve — отметка руководителя на отправленном листе. Повторно запускает автоматическую выдачу.
func (s *Service) Approve(ctx context.Context, ref SheetRef) (SubmitResult, error) {
	ctx, log := s.begin(ctx, "approve_evaluation")
	supervisorID, err := operator(ctx)
	if err != nil {
		return SubmitResult{}, s.fail(ctx, log, err)
	}
	defer s.sheets.lock(sheetKey{ref.SessionID, ref.UserID})()

	var (
		res   SubmitResult
		event models.Event
		diags []models.RenderDiagnostic
	)
	err = s.tx(ctx, func(tx *sql.Tx) error {
		sess, err := db.LockSessionContext(ctx, tx, ref.SessionID, db.LockShare)
		if err != nil {
			return err
		}
		if err := scoring.EnsureWritable(sess); err != nil {
			return err
		}
		ev, err := db.LockEvaluationContext(ctx, tx, sess.ID, ref.UserID)
		if err != nil {
			return err
		}
		if ev == nil {
			return &apperr.NotFoundError{Entity: "participant_evaluation", ID: itoa(sess.ID) + "/" + itoa(ref.UserID)}
		}
		if ev.Status != models.EvaluationSubmitted {
			return &apperr.NotSubmittedError{EvaluationID: ev.ID}
		}
		if err := checkVersion(ev, ref.ExpectedVersion); err != nil {
			return err
		}
		if event, err = db.GetEventContext(ctx, tx, sess.EventID); err != nil {
			return err
		}
		if !ev.Approved() {
			at := s.now().UTC()
			ev.ApprovedAt = &at
			ev.ApprovedBy = &supervisorID
			if err := db.SaveApprovalContext(ctx, tx, ev); err != nil {
				return err
			}
		}
		issuer := supervisorID
		if ev.SubmittedBy != nil {
			issuer = *ev.SubmittedBy
		}
		outcome, err := s.onSubmitted(ctx, tx, log, models.SubmissionEvent{Evaluation: *ev, Event: event, OperatorID: issuer})
		if err != nil {
			return err
		}
		res = outcome.result(*ev)
		diags = outcome.diagnostics
		return nil
	})
	if err != nil {
		return SubmitResult{}, s.fail(ctx, log, err)
	}
	log.Info("evaluation approved", zap.Int64("evaluation_id", res.Evaluation.ID))
	s.afterAutomation(ctx, log, res, event, diags)
	return res, nil
}
