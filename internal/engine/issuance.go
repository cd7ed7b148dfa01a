package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/certnum"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/metrics"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/render"
)

// maxNumberAttempts — сколько раз брать следующий номер, если сгенерированный уже занят.
const maxNumberAttempts = 5

type IssueRequest struct {
	UserID     int64                  `json:"user_id" validate:"required,gt=0"`
	EventID    int64                  `json:"event_id" validate:"required,gt=0"`
	Type       models.CertificateType `json:"type" validate:"required,oneof=completion participation"`
	TemplateID int64                  `json:"template_id,omitempty" validate:"omitempty,gt=0"`
	// ParticipantEvaluationID по умолчанию — отправленный лист участника за мероприятие.
	ParticipantEvaluationID *int64 `json:"participant_evaluation_id,omitempty"`
	TrainingType            string `json:"training_type,omitempty" validate:"max=200"`
}

type issueParams struct {
	user         int64
	event        models.Event
	typ          models.CertificateType
	template     models.CertificateTemplate
	evaluationID *int64
	score        *float64
	trainingType string
	issuer       int64
	auto         bool
}

// Issue — ручная выдача оператором.
func (s *Service) Issue(ctx context.Context, req IssueRequest) (models.IssuedCertificate, error) {
	ctx, log := s.begin(ctx, "issue_certificate")
	issuer, err := operator(ctx)
	if err != nil {
		return models.IssuedCertificate{}, s.fail(ctx, log, err)
	}
	if !req.Type.Valid() {
		return models.IssuedCertificate{}, s.fail(ctx, log,
			apperr.Invalid(apperr.CodeCertificateTypeNA, "certificate type must be completion or participation",
				map[string]string{"type": string(req.Type)}))
	}

	var (
		cert  models.IssuedCertificate
		diags []models.RenderDiagnostic
		event models.Event
	)
	err = s.tx(ctx, func(tx *sql.Tx) error {
		var err error
		if event, err = db.GetEventContext(ctx, tx, req.EventID); err != nil {
			return err
		}
		tpl, err := s.manualTemplate(ctx, tx, req)
		if err != nil {
			return err
		}
		evID, score, err := s.evaluationLink(ctx, tx, req)
		if err != nil {
			return err
		}
		training := strings.TrimSpace(req.TrainingType)
		if training == "" {
			training = event.DefaultTrainingType()
		}
		cert, diags, err = s.issueTx(ctx, tx, issueParams{
			user:         req.UserID,
			event:        event,
			typ:          req.Type,
			template:     tpl,
			evaluationID: evID,
			score:        score,
			trainingType: training,
			issuer:       issuer,
		})
		return err
	})
	if err != nil {
		return models.IssuedCertificate{}, s.fail(ctx, log, err)
	}
	s.issued(ctx, log, cert, event, diags, "manual")
	return cert, nil
}

func (s *Service) manualTemplate(ctx context.Context, q db.Querier, req IssueRequest) (models.CertificateTemplate, error) {
	if req.TemplateID > 0 {
		return db.GetTemplateContext(ctx, q, req.TemplateID)
	}
	stored, err := db.GetSettingsContext(ctx, q, &req.EventID)
	if err != nil {
		return models.CertificateTemplate{}, err
	}
	tpl, err := s.autoTemplate(ctx, q, stored.DefaultTemplateID)
	if err != nil {
		return models.CertificateTemplate{}, err
	}
	if tpl == nil {
		return models.CertificateTemplate{}, apperr.Invalid(apperr.CodeTemplateInactive, "no active certificate template", nil)
	}
	return *tpl, nil
}

// evaluationLink — ссылка на лист для трассировки и процент для {score}.
func (s *Service) evaluationLink(ctx context.Context, q db.Querier, req IssueRequest) (*int64, *float64, error) {
	if req.ParticipantEvaluationID != nil {
		ev, err := db.GetEvaluationContext(ctx, q, *req.ParticipantEvaluationID)
		if err != nil {
			return nil, nil, err
		}
		if ev.UserID != req.UserID || ev.EventID != req.EventID {
			return nil, nil, apperr.Invalid(apperr.CodeRequestInvalid,
				"participant evaluation belongs to another participant or event",
				map[string]string{"participant_evaluation_id": strconv.FormatInt(ev.ID, 10)})
		}
		id := ev.ID
		if ev.Status != models.EvaluationSubmitted {
			return &id, nil, nil
		}
		pct := ev.Percentage
		return &id, &pct, nil
	}
	sess, err := db.GetSessionByEventContext(ctx, q, req.EventID)
	var nf *apperr.NotFoundError
	if errors.As(err, &nf) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	ev, err := db.FindEvaluationContext(ctx, q, sess.ID, req.UserID)
	if err != nil || ev == nil || ev.Status != models.EvaluationSubmitted {
		return nil, nil, err
	}
	id, pct := ev.ID, ev.Percentage
	return &id, &pct, nil
}

// issueTx — шаги выдачи внутри транзакции вызывающего: номер, рендер, запись.
// Вся выдача под savepoint: при дубликате откатывается и счётчик номеров.
func (s *Service) issueTx(ctx context.Context, tx *sql.Tx, p issueParams) (models.IssuedCertificate, []models.RenderDiagnostic, error) {
	if p.template.Status != models.TemplateActive {
		return models.IssuedCertificate{}, nil, &apperr.TemplateInactiveError{TemplateID: p.template.ID}
	}
	user, err := db.GetUserContext(ctx, tx, p.user)
	if err != nil {
		return models.IssuedCertificate{}, nil, err
	}

	now := s.now().UTC()
	local := now.In(s.loc)
	scope := certnum.Scope(p.template.NumberFormat, local.Year())
	rctx := render.Context{
		Name:         user.Name,
		Date:         local.Format(s.dateLayout),
		Event:        p.event.Title,
		TrainingType: p.trainingType,
	}
	if p.score != nil {
		rctx.Score = render.FormatScore(*p.score)
	}

	var (
		cert  models.IssuedCertificate
		diags []render.Diagnostic
	)
	err = db.WithSavepoint(ctx, tx, "issue_certificate", func() error {
		for attempt := 0; attempt < maxNumberAttempts; attempt++ {
			seq, err := db.NextSequenceContext(ctx, tx, scope)
			if err != nil {
				return err
			}
			rctx.CertificateNumber = certnum.Format(p.template.NumberFormat, local.Year(), seq)
			doc := render.Render(p.template, rctx)
			page := doc.HTML()
			diags = doc.Diagnostics
			cert = models.IssuedCertificate{
				CertificateNumber:       rctx.CertificateNumber,
				VerificationCode:        uuid.NewString(),
				Type:                    p.typ,
				UserID:                  user.ID,
				EventID:                 p.event.ID,
				TemplateID:              p.template.ID,
				ParticipantEvaluationID: p.evaluationID,
				TrainingType:            p.trainingType,
				Score:                   p.score,
				Document:                page,
				ContentHash:             render.ContentHash(page),
				PaperSize:               doc.PaperSize,
				AutoIssued:              p.auto,
				IssuedAt:                now,
				IssuerID:                p.issuer,
			}
			err = db.WithSavepoint(ctx, tx, "insert_certificate", func() error {
				return db.InsertCertificateContext(ctx, tx, &cert)
			})
			if errors.Is(err, db.ErrNumberTaken) {
				continue
			}
			return err
		}
		return fmt.Errorf("certificate number for scope %q: %w after %d attempts", scope, db.ErrNumberTaken, maxNumberAttempts)
	})
	var dup *apperr.DuplicateCertificateError
	if errors.As(err, &dup) {
		if existing, lookupErr := db.GetActiveCertificateContext(ctx, tx, p.user, p.event.ID, p.typ); lookupErr == nil && existing != nil {
			dup.Existing = apperr.ExistingCertificate{
				ID:                existing.ID,
				CertificateNumber: existing.CertificateNumber,
				IssuedAt:          existing.IssuedAt,
			}
		}
		return models.IssuedCertificate{}, nil, dup
	}
	if err != nil {
		return models.IssuedCertificate{}, nil, err
	}

	stored := make([]models.RenderDiagnostic, 0, len(diags))
	for _, d := range diags {
		id := cert.ID
		stored = append(stored, models.RenderDiagnostic{
			CertificateID: &id,
			TemplateID:    p.template.ID,
			Kind:          string(d.Kind),
			Offset:        d.Offset,
			Detail:        d.Detail,
		})
	}
	if err := db.InsertDiagnosticsContext(ctx, tx, stored); err != nil {
		return models.IssuedCertificate{}, nil, err
	}
	return cert, stored, nil
}

// issued — после коммита выдачи: метрики, лог, уведомление участнику.
func (s *Service) issued(ctx context.Context, log *zap.Logger, cert models.IssuedCertificate, event models.Event, diags []models.RenderDiagnostic, trigger string) {
	metrics.CertificatesIssued.WithLabelValues(string(cert.Type), trigger).Inc()
	for _, d := range diags {
		metrics.RenderDiagnostics.WithLabelValues(d.Kind).Inc()
	}
	log.Info("certificate issued",
		zap.Int64("certificate_id", cert.ID),
		zap.String("number", cert.CertificateNumber),
		zap.Int64("user_id", cert.UserID),
		zap.Int64("event_id", cert.EventID),
		zap.String("trigger", trigger),
		zap.Int("diagnostics", len(diags)))
	s.notify(ctx, log, cert, event)
}

func (s *Service) notify(ctx context.Context, log *zap.Logger, cert models.IssuedCertificate, event models.Event) {
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	user, err := db.GetUserContext(nctx, s.db, cert.UserID)
	if err == nil {
		err = s.notifier.CertificateIssued(nctx, user, cert, event.Title)
	}
	if err != nil {
		metrics.NotificationsFailed.Inc()
		log.Warn("certificate notification failed", zap.Int64("certificate_id", cert.ID), zap.Error(err))
	}
}

// Revoke — active → revoked; запись остаётся в реестре.
func (s *Service) Revoke(ctx context.Context, certificateID int64, reason *string) (models.IssuedCertificate, error) {
	ctx, log := s.begin(ctx, "revoke_certificate")
	by, err := operator(ctx)
	if err != nil {
		return models.IssuedCertificate{}, s.fail(ctx, log, err)
	}
	if reason != nil && strings.TrimSpace(*reason) == "" {
		reason = nil
	}
	cert, err := db.RevokeCertificateContext(ctx, s.db, certificateID, by, reason, s.now().UTC())
	if err != nil {
		return models.IssuedCertificate{}, s.fail(ctx, log, err)
	}
	metrics.CertificatesRevoked.Inc()
	log.Info("certificate revoked", zap.Int64("certificate_id", cert.ID), zap.String("number", cert.CertificateNumber))
	return cert, nil
}

// CertificateDetail — сертификат с замечаниями рендера.
type CertificateDetail struct {
	models.IssuedCertificate
	Diagnostics []models.RenderDiagnostic `json:"diagnostics"`
}

func (s *Service) GetCertificate(ctx context.Context, id int64) (CertificateDetail, error) {
	cert, err := db.GetCertificateContext(ctx, s.db, id)
	if err != nil {
		return CertificateDetail{}, err
	}
	diags, err := db.ListDiagnosticsContext(ctx, s.db, id)
	if err != nil {
		return CertificateDetail{}, err
	}
	if diags == nil {
		diags = []models.RenderDiagnostic{}
	}
	return CertificateDetail{IssuedCertificate: cert, Diagnostics: diags}, nil
}

// Document — сохранённая при выдаче печатная страница.
func (s *Service) Document(ctx context.Context, id int64) (string, error) {
	cert, err := db.GetCertificateContext(ctx, s.db, id)
	if err != nil {
		return "", err
	}
	return cert.Document, nil
}

// Verification — результат проверки подлинности по номеру или коду.
type Verification struct {
	Certificate models.IssuedCertificate `json:"certificate"`
	HashMatches bool                     `json:"hash_matches"`
	Valid       bool                     `json:"valid"`
}

func (s *Service) Verify(ctx context.Context, numberOrCode string) (Verification, error) {
	numberOrCode = strings.TrimSpace(numberOrCode)
	if numberOrCode == "" {
		return Verification{}, apperr.Invalid(apperr.CodeRequestInvalid, "certificate number is required", nil)
	}
	cert, err := db.FindCertificateContext(ctx, s.db, numberOrCode)
	if err != nil {
		return Verification{}, err
	}
	v := Verification{Certificate: cert, HashMatches: render.ContentHash(cert.Document) == cert.ContentHash}
	v.Valid = v.HashMatches && cert.IsActive()
	return v, nil
}

func (s *Service) History(ctx context.Context, f models.CertificateFilter) ([]models.CertificateHistoryRow, error) {
	if f.Limit <= 0 || f.Limit > 1000 {
		f.Limit = 1000
	}
	return db.ListCertificatesContext(ctx, s.db, f)
}
