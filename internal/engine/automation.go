package engine

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/eligibility"
	"github.com/Spok95/drillcert/internal/metrics"
	"github.com/Spok95/drillcert/internal/models"
)

type automationOutcome struct {
	decision    eligibility.Decision
	reason      eligibility.Reason
	issued      *models.IssuedCertificate
	diagnostics []models.RenderDiagnostic
}

func (o automationOutcome) result(ev models.ParticipantEvaluation) SubmitResult {
	r := SubmitResult{Evaluation: ev, Eligibility: o.decision.Status, Reason: o.reason, Certificate: o.issued}
	if o.issued != nil {
		r.Eligibility = models.Eligible
	}
	return r
}

// onSubmitted — обработчик события отправки, выполняется внутри транзакции отправки.
// Ошибка выдачи откатывает и саму отправку.
func (s *Service) onSubmitted(ctx context.Context, tx *sql.Tx, log *zap.Logger, evt models.SubmissionEvent) (automationOutcome, error) {
	ev := evt.Evaluation
	stored, err := db.GetSettingsContext(ctx, tx, &ev.EventID)
	if err != nil {
		return automationOutcome{}, err
	}
	attendance, err := db.GetAttendanceContext(ctx, tx, ev.EventID, ev.UserID)
	if err != nil {
		return automationOutcome{}, err
	}
	active, err := db.AnyActiveCertificateContext(ctx, tx, ev.UserID, ev.EventID)
	if err != nil {
		return automationOutcome{}, err
	}

	in := eligibility.Input{
		Evaluation:        &ev,
		Attendance:        attendance,
		Settings:          stored.AutomationSettings,
		ActiveCertificate: active,
	}
	out := automationOutcome{decision: eligibility.Evaluate(in)}
	ok, reason := eligibility.AutoIssue(in)
	out.reason = reason
	if !ok {
		return out, nil
	}

	tpl, err := s.autoTemplate(ctx, tx, stored.DefaultTemplateID)
	if err != nil {
		return automationOutcome{}, err
	}
	if tpl == nil {
		out.reason = eligibility.ReasonNoTemplate
		log.Warn("auto-issue skipped: no active template", zap.Int64("evaluation_id", ev.ID))
		return out, nil
	}

	evID := ev.ID
	cert, diags, err := s.issueTx(ctx, tx, issueParams{
		user:         ev.UserID,
		event:        evt.Event,
		typ:          models.CertificateCompletion,
		template:     *tpl,
		evaluationID: &evID,
		score:        &ev.Percentage,
		trainingType: evt.Event.DefaultTrainingType(),
		issuer:       evt.OperatorID,
		auto:         true,
	})
	var dup *apperr.DuplicateCertificateError
	if errors.As(err, &dup) {
		// параллельная ручная выдача успела раньше
		out.reason = eligibility.ReasonAlreadyIssued
		out.decision = eligibility.Decision{Status: models.Eligible, Reason: eligibility.ReasonAlreadyIssued, AlreadyIssued: true}
		return out, nil
	}
	if err != nil {
		return automationOutcome{}, err
	}
	out.issued = &cert
	out.diagnostics = diags
	return out, nil
}

// autoTemplate — шаблон автоматической выдачи: из настроек, если он активен, иначе самый новый активный.
func (s *Service) autoTemplate(ctx context.Context, q db.Querier, preferred *int64) (*models.CertificateTemplate, error) {
	if preferred != nil {
		tpl, err := db.GetTemplateContext(ctx, q, *preferred)
		var nf *apperr.NotFoundError
		switch {
		case errors.As(err, &nf):
		case err != nil:
			return nil, err
		case tpl.Status == models.TemplateActive:
			return &tpl, nil
		}
	}
	return db.LatestActiveTemplateContext(ctx, q)
}

// afterAutomation — всё, что делается после коммита: метрики и уведомление.
func (s *Service) afterAutomation(ctx context.Context, log *zap.Logger, res SubmitResult, event models.Event, diags []models.RenderDiagnostic) {
	if res.Certificate == nil {
		if res.Reason != eligibility.ReasonAlreadyIssued {
			metrics.AutoIssueSkipped.WithLabelValues(string(res.Reason)).Inc()
		}
		return
	}
	s.issued(ctx, log, *res.Certificate, event, diags, "auto")
}
