package engine

import (
	"context"

	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/models"
)

// GetSettings — действующие настройки автоматизации: переопределение мероприятия или глобальные.
func (s *Service) GetSettings(ctx context.Context, eventID *int64) (models.StoredSettings, error) {
	return db.GetSettingsContext(ctx, s.db, eventID)
}

// PutSettings сохраняет настройки. eventID == nil — глобальные.
func (s *Service) PutSettings(ctx context.Context, eventID *int64, in models.AutomationSettings) (models.StoredSettings, error) {
	ctx, log := s.begin(ctx, "put_settings")
	by, err := operator(ctx)
	if err != nil {
		return models.StoredSettings{}, s.fail(ctx, log, err)
	}
	if eventID != nil {
		if _, err := db.GetEventContext(ctx, s.db, *eventID); err != nil {
			return models.StoredSettings{}, s.fail(ctx, log, err)
		}
	}
	if in.DefaultTemplateID != nil {
		tpl, err := db.GetTemplateContext(ctx, s.db, *in.DefaultTemplateID)
		if err != nil && apperr.CategoryOf(err) != apperr.CategoryNotFound {
			return models.StoredSettings{}, s.fail(ctx, log, err)
		}
		if err != nil {
			return models.StoredSettings{}, s.fail(ctx, log,
				apperr.Invalid(apperr.CodeSettingsInvalid, "default template does not exist",
					map[string]string{"default_template_id": itoa(*in.DefaultTemplateID)}))
		}
		if tpl.Status != models.TemplateActive {
			return models.StoredSettings{}, s.fail(ctx, log,
				apperr.Invalid(apperr.CodeSettingsInvalid, "default template is inactive",
					map[string]string{"default_template_id": itoa(tpl.ID)}))
		}
	}
	saved, err := db.PutSettingsContext(ctx, s.db, eventID, in, &by)
	if err != nil {
		return models.StoredSettings{}, s.fail(ctx, log, err)
	}
	log.Info("automation settings saved",
		zap.String("scope", saved.Scope),
		zap.Bool("auto_issue", saved.AutoIssueWhenPassed),
		zap.Bool("require_attendance", saved.RequireAttendance),
		zap.Bool("require_approval", saved.RequireSupervisorApproval))
	return saved, nil
}

// ResetEventSettings снимает переопределение мероприятия; дальше действуют глобальные.
func (s *Service) ResetEventSettings(ctx context.Context, eventID int64) error {
	ctx, log := s.begin(ctx, "reset_event_settings")
	if _, err := operator(ctx); err != nil {
		return s.fail(ctx, log, err)
	}
	if _, err := db.DeleteEventSettingsContext(ctx, s.db, eventID); err != nil {
		return s.fail(ctx, log, err)
	}
	return nil
}
