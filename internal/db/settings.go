package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
)

// SettingsScope — ключ строки настроек: global или event:<id>.
func SettingsScope(eventID *int64) string {
	if eventID == nil {
		return models.SettingsScopeGlobal
	}
	return "event:" + itoa(*eventID)
}

const settingsColumns = `scope, event_id, auto_issue_when_passed, require_attendance,
	require_supervisor_approval, default_template_id, updated_by, updated_at`

func scanSettings(row interface{ Scan(dest ...any) error }) (models.StoredSettings, error) {
	var (
		s         models.StoredSettings
		eventID   sql.NullInt64
		tplID     sql.NullInt64
		updatedBy sql.NullInt64
	)
	if err := row.Scan(&s.Scope, &eventID, &s.AutoIssueWhenPassed, &s.RequireAttendance,
		&s.RequireSupervisorApproval, &tplID, &updatedBy, &s.UpdatedAt); err != nil {
		return models.StoredSettings{}, err
	}
	s.EventID = int64Ptr(eventID)
	s.DefaultTemplateID = int64Ptr(tplID)
	s.UpdatedBy = int64Ptr(updatedBy)
	return s, nil
}

// GetSettingsContext — действующие настройки: строка мероприятия, если есть, иначе глобальная.
func GetSettingsContext(ctx context.Context, q Querier, eventID *int64) (models.StoredSettings, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	if eventID != nil {
		s, err := scanSettings(q.QueryRowContext(ctx,
			`SELECT `+settingsColumns+` FROM automation_settings WHERE scope = $1`, SettingsScope(eventID)))
		if err == nil {
			return s, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return models.StoredSettings{}, err
		}
	}
	s, err := scanSettings(q.QueryRowContext(ctx,
		`SELECT `+settingsColumns+` FROM automation_settings WHERE scope = $1`, models.SettingsScopeGlobal))
	if errors.Is(err, sql.ErrNoRows) {
		// глобальная строка создаётся миграцией; без неё действуют значения по умолчанию
		return models.StoredSettings{Scope: models.SettingsScopeGlobal}, nil
	}
	return s, err
}

// PutSettingsContext сохраняет настройки области целиком.
func PutSettingsContext(ctx context.Context, q Querier, eventID *int64, in models.AutomationSettings, by *int64) (models.StoredSettings, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	return scanSettings(q.QueryRowContext(ctx, `
		INSERT INTO automation_settings (scope, event_id, auto_issue_when_passed, require_attendance,
		                                 require_supervisor_approval, default_template_id, updated_by, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (scope) DO UPDATE SET
			auto_issue_when_passed      = EXCLUDED.auto_issue_when_passed,
			require_attendance          = EXCLUDED.require_attendance,
			require_supervisor_approval = EXCLUDED.require_supervisor_approval,
			default_template_id         = EXCLUDED.default_template_id,
			updated_by                  = EXCLUDED.updated_by,
			updated_at                  = now()
		RETURNING `+settingsColumns,
		SettingsScope(eventID), nullInt64(eventID), in.AutoIssueWhenPassed, in.RequireAttendance,
		in.RequireSupervisorApproval, nullInt64(in.DefaultTemplateID), nullInt64(by)))
}

// DeleteEventSettingsContext снимает переопределение мероприятия.
func DeleteEventSettingsContext(ctx context.Context, q Querier, eventID int64) (bool, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	res, err := q.ExecContext(ctx, `DELETE FROM automation_settings WHERE scope = $1`, SettingsScope(&eventID))
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	return n == 1, nil
}
