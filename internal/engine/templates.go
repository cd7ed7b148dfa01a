package engine

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/certnum"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/render"
)

const defaultOpacity = 0.3

type TemplateInput struct {
	Name              string           `json:"name" validate:"required,max=200"`
	Content           string           `json:"content" validate:"required"`
	Background        []byte           `json:"background,omitempty"`
	BackgroundOpacity *float64         `json:"background_opacity,omitempty"`
	PaperSize         models.PaperSize `json:"paper_size,omitempty"`
	NumberFormat      string           `json:"number_format,omitempty" validate:"max=100"`
}

// validateTemplate нормализует значения по умолчанию и проверяет шаблон.
func validateTemplate(in TemplateInput) (models.CertificateTemplate, error) {
	t := models.CertificateTemplate{
		Name:              strings.TrimSpace(in.Name),
		Content:           in.Content,
		Background:        in.Background,
		BackgroundOpacity: defaultOpacity,
		PaperSize:         in.PaperSize,
		NumberFormat:      strings.TrimSpace(in.NumberFormat),
		Status:            models.TemplateActive,
	}
	if t.Name == "" {
		return t, &apperr.InvalidTemplateError{Field: "name", Reason: "is required"}
	}
	if strings.TrimSpace(t.Content) == "" {
		return t, &apperr.InvalidTemplateError{Field: "content", Reason: "is required"}
	}
	if in.BackgroundOpacity != nil {
		t.BackgroundOpacity = *in.BackgroundOpacity
	}
	if t.BackgroundOpacity < models.MinBackgroundOpacity || t.BackgroundOpacity > models.MaxBackgroundOpacity {
		return t, &apperr.InvalidTemplateError{Field: "background_opacity", Reason: "must be within [0.1, 0.8]"}
	}
	if t.PaperSize == "" {
		t.PaperSize = models.PaperA4Landscape
	}
	if !t.PaperSize.Valid() {
		return t, &apperr.InvalidTemplateError{Field: "paper_size", Reason: "must be A4, A4-landscape, Letter or Letter-landscape"}
	}
	if t.NumberFormat == "" {
		t.NumberFormat = certnum.DefaultFormat
	}
	if err := certnum.Validate(t.NumberFormat); err != nil {
		return t, &apperr.InvalidTemplateError{Field: "number_format", Reason: err.Error()}
	}
	if len(t.Background) > 0 {
		if err := render.DetectImage(t.Background); err != nil {
			return t, &apperr.InvalidTemplateError{Field: "background", Reason: err.Error()}
		}
	}
	return t, nil
}

func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (models.CertificateTemplate, error) {
	ctx, log := s.begin(ctx, "create_template")
	by, err := operator(ctx)
	if err != nil {
		return models.CertificateTemplate{}, s.fail(ctx, log, err)
	}
	t, err := validateTemplate(in)
	if err != nil {
		return models.CertificateTemplate{}, s.fail(ctx, log, err)
	}
	t.CreatedBy = &by
	saved, err := db.CreateTemplateContext(ctx, s.db, t)
	if err != nil {
		return models.CertificateTemplate{}, s.fail(ctx, log, err)
	}
	log.Info("certificate template created", zap.Int64("template_id", saved.ID), zap.String("name", saved.Name))
	return saved, nil
}

func (s *Service) GetTemplate(ctx context.Context, id int64) (models.CertificateTemplate, error) {
	return db.GetTemplateContext(ctx, s.db, id)
}

func (s *Service) ListTemplates(ctx context.Context, status *models.TemplateStatus) ([]models.CertificateTemplate, error) {
	return db.ListTemplatesContext(ctx, s.db, status)
}

func (s *Service) SetTemplateStatus(ctx context.Context, id int64, status models.TemplateStatus) (models.CertificateTemplate, error) {
	ctx, log := s.begin(ctx, "set_template_status")
	if _, err := operator(ctx); err != nil {
		return models.CertificateTemplate{}, s.fail(ctx, log, err)
	}
	if status != models.TemplateActive && status != models.TemplateInactive {
		return models.CertificateTemplate{}, s.fail(ctx, log,
			&apperr.InvalidTemplateError{Field: "status", Reason: "must be active or inactive"})
	}
	t, err := db.SetTemplateStatusContext(ctx, s.db, id, status)
	if err != nil {
		return models.CertificateTemplate{}, s.fail(ctx, log, err)
	}
	log.Info("certificate template status changed", zap.Int64("template_id", id), zap.String("status", string(status)))
	return t, nil
}

// Preview — рендер без записи. Пустые поля контекста заполняются образцом.
type Preview struct {
	HTML        string              `json:"html"`
	Diagnostics []render.Diagnostic `json:"diagnostics"`
}

func (s *Service) PreviewTemplate(ctx context.Context, id int64, sample render.Context) (Preview, error) {
	tpl, err := db.GetTemplateContext(ctx, s.db, id)
	if err != nil {
		return Preview{}, err
	}
	now := s.now().In(s.loc)
	def := render.Context{
		Name:              "Jane Doe",
		Date:              now.Format(s.dateLayout),
		Event:             "Sample drill",
		CertificateNumber: certnum.Format(tpl.NumberFormat, now.Year(), 1),
		Score:             render.FormatScore(85),
		TrainingType:      "Sample training",
	}
	fill(&sample.Name, def.Name)
	fill(&sample.Date, def.Date)
	fill(&sample.Event, def.Event)
	fill(&sample.CertificateNumber, def.CertificateNumber)
	fill(&sample.Score, def.Score)
	fill(&sample.TrainingType, def.TrainingType)

	doc := render.Render(tpl, sample)
	diags := doc.Diagnostics
	if diags == nil {
		diags = []render.Diagnostic{}
	}
	return Preview{HTML: doc.HTML(), Diagnostics: diags}, nil
}

func fill(dst *string, def string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = def
	}
}
