// Package eligibility решает, может ли участник получить сертификат.
// Это чистая функция от листа оценки, посещаемости, настроек автоматизации
// и уже выданных сертификатов.
package eligibility

import "github.com/Spok95/drillcert/internal/models"

// Reason — почему принято решение. Используется в очереди ручной выдачи и в метриках.
type Reason string

const (
	ReasonAlreadyIssued    Reason = "already_issued"
	ReasonNoEvaluation     Reason = "no_evaluation"
	ReasonNotSubmitted     Reason = "not_submitted"
	ReasonFailed           Reason = "failed"
	ReasonAttendance       Reason = "attendance_required"
	ReasonAwaitingApproval Reason = "awaiting_approval"
	ReasonEligible         Reason = "eligible"
	ReasonAutomationOff    Reason = "automation_disabled"
	ReasonNoTemplate       Reason = "no_active_template"
)

// Input — всё, от чего зависит решение. Attendance == nil означает «не отмечен».
type Input struct {
	Evaluation        *models.ParticipantEvaluation
	Attendance        *models.AttendanceRecord
	Settings          models.AutomationSettings
	ActiveCertificate *models.IssuedCertificate
}

type Decision struct {
	Status        models.EligibilityStatus
	Reason        Reason
	AlreadyIssued bool
}

// Evaluate применяет правила по порядку; первое сработавшее определяет результат.
func Evaluate(in Input) Decision {
	if in.ActiveCertificate != nil && in.ActiveCertificate.IsActive() {
		// уже сертифицирован: помечается как выданный и повторно не предлагается
		return Decision{Status: models.Eligible, Reason: ReasonAlreadyIssued, AlreadyIssued: true}
	}
	if in.Evaluation == nil {
		return Decision{Status: models.Pending, Reason: ReasonNoEvaluation}
	}
	if in.Evaluation.Status != models.EvaluationSubmitted {
		return Decision{Status: models.Pending, Reason: ReasonNotSubmitted}
	}
	if !in.Evaluation.Passed() {
		return Decision{Status: models.NotEligible, Reason: ReasonFailed}
	}
	if in.Settings.RequireAttendance && !AttendanceAccepted(in.Attendance) {
		return Decision{Status: models.NotEligible, Reason: ReasonAttendance}
	}
	if in.Settings.RequireSupervisorApproval && !in.Evaluation.Approved() {
		return Decision{Status: models.Pending, Reason: ReasonAwaitingApproval}
	}
	return Decision{Status: models.Eligible, Reason: ReasonEligible}
}

// AttendanceAccepted — засчитываются только present и completed.
func AttendanceAccepted(a *models.AttendanceRecord) bool {
	if a == nil {
		return false
	}
	return a.Status == models.AttendancePresent || a.Status == models.AttendanceCompleted
}

// AutoIssue решает, выдавать ли сертификат автоматически после отправки.
// Второе значение — причина отказа (или ReasonEligible).
func AutoIssue(in Input) (bool, Reason) {
	d := Evaluate(in)
	if d.AlreadyIssued {
		return false, ReasonAlreadyIssued
	}
	if d.Status != models.Eligible {
		return false, d.Reason
	}
	if !in.Settings.AutoIssueWhenPassed {
		return false, ReasonAutomationOff
	}
	return true, ReasonEligible
}
