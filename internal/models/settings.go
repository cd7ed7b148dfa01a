package models

import "time"

const SettingsScopeGlobal = "global"

// AutomationSettings — правила автоматической выдачи сертификатов.
// Передаётся в движок явно на каждую операцию, глобального состояния нет.
type AutomationSettings struct {
	AutoIssueWhenPassed       bool   `db:"auto_issue_when_passed" json:"auto_issue_when_passed"`
	RequireAttendance         bool   `db:"require_attendance" json:"require_attendance"`
	RequireSupervisorApproval bool   `db:"require_supervisor_approval" json:"require_supervisor_approval"`
	DefaultTemplateID         *int64 `db:"default_template_id" json:"default_template_id,omitempty"`
}

// StoredSettings — строка хранилища настроек с областью действия.
type StoredSettings struct {
	Scope     string    `db:"scope" json:"scope"`
	EventID   *int64    `db:"event_id" json:"event_id,omitempty"`
	UpdatedBy *int64    `db:"updated_by" json:"updated_by,omitempty"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
	AutomationSettings
}
