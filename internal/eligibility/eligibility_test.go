package eligibility_test

import (
	"testing"
	"time"

	"github.com/Spok95/drillcert/internal/eligibility"
	"github.com/Spok95/drillcert/internal/models"
)

func submitted(result models.Result) *models.ParticipantEvaluation {
	return &models.ParticipantEvaluation{ID: 1, UserID: 5, EventID: 2, Status: models.EvaluationSubmitted, Result: &result}
}

func attended(s models.AttendanceStatus) *models.AttendanceRecord {
	return &models.AttendanceRecord{UserID: 5, EventID: 2, Status: s}
}

func TestEvaluate(t *testing.T) {
	approvedAt := time.Now()
	approved := submitted(models.ResultPassed)
	approved.ApprovedAt = &approvedAt

	cases := []struct {
		name   string
		in     eligibility.Input
		status models.EligibilityStatus
		reason eligibility.Reason
	}{
		{
			name:   "active certificate wins over everything",
			in:     eligibility.Input{Evaluation: submitted(models.ResultFailed), ActiveCertificate: &models.IssuedCertificate{Status: models.CertificateActive}},
			status: models.Eligible, reason: eligibility.ReasonAlreadyIssued,
		},
		{
			name:   "revoked certificate is ignored",
			in:     eligibility.Input{Evaluation: submitted(models.ResultFailed), ActiveCertificate: &models.IssuedCertificate{Status: models.CertificateRevoked}},
			status: models.NotEligible, reason: eligibility.ReasonFailed,
		},
		{
			name:   "no evaluation",
			in:     eligibility.Input{},
			status: models.Pending, reason: eligibility.ReasonNoEvaluation,
		},
		{
			name:   "draft",
			in:     eligibility.Input{Evaluation: &models.ParticipantEvaluation{Status: models.EvaluationDraft}},
			status: models.Pending, reason: eligibility.ReasonNotSubmitted,
		},
		{
			name:   "failed",
			in:     eligibility.Input{Evaluation: submitted(models.ResultFailed)},
			status: models.NotEligible, reason: eligibility.ReasonFailed,
		},
		{
			name: "absent with attendance required",
			in: eligibility.Input{
				Evaluation: submitted(models.ResultPassed), Attendance: attended(models.AttendanceAbsent),
				Settings: models.AutomationSettings{AutoIssueWhenPassed: true, RequireAttendance: true},
			},
			status: models.NotEligible, reason: eligibility.ReasonAttendance,
		},
		{
			name: "late is not accepted",
			in: eligibility.Input{
				Evaluation: submitted(models.ResultPassed), Attendance: attended(models.AttendanceLate),
				Settings: models.AutomationSettings{RequireAttendance: true},
			},
			status: models.NotEligible, reason: eligibility.ReasonAttendance,
		},
		{
			name: "attendance missing",
			in: eligibility.Input{
				Evaluation: submitted(models.ResultPassed),
				Settings:   models.AutomationSettings{RequireAttendance: true},
			},
			status: models.NotEligible, reason: eligibility.ReasonAttendance,
		},
		{
			name: "absent but attendance not required",
			in: eligibility.Input{
				Evaluation: submitted(models.ResultPassed), Attendance: attended(models.AttendanceAbsent),
			},
			status: models.Eligible, reason: eligibility.ReasonEligible,
		},
		{
			name: "awaiting approval",
			in: eligibility.Input{
				Evaluation: submitted(models.ResultPassed), Attendance: attended(models.AttendancePresent),
				Settings: models.AutomationSettings{RequireAttendance: true, RequireSupervisorApproval: true},
			},
			status: models.Pending, reason: eligibility.ReasonAwaitingApproval,
		},
		{
			name: "approved",
			in: eligibility.Input{
				Evaluation: approved, Attendance: attended(models.AttendanceCompleted),
				Settings: models.AutomationSettings{RequireAttendance: true, RequireSupervisorApproval: true},
			},
			status: models.Eligible, reason: eligibility.ReasonEligible,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := eligibility.Evaluate(tc.in)
			if d.Status != tc.status || d.Reason != tc.reason {
				t.Fatalf("got %s/%s, want %s/%s", d.Status, d.Reason, tc.status, tc.reason)
			}
		})
	}
}

func TestAutoIssue(t *testing.T) {
	in := eligibility.Input{
		Evaluation: submitted(models.ResultPassed),
		Attendance: attended(models.AttendancePresent),
		Settings:   models.AutomationSettings{AutoIssueWhenPassed: true, RequireAttendance: true},
	}
	if ok, reason := eligibility.AutoIssue(in); !ok || reason != eligibility.ReasonEligible {
		t.Fatalf("want auto issue, got %v %s", ok, reason)
	}

	in.Settings.AutoIssueWhenPassed = false
	if ok, reason := eligibility.AutoIssue(in); ok || reason != eligibility.ReasonAutomationOff {
		t.Fatalf("automation off: %v %s", ok, reason)
	}

	in.Settings.AutoIssueWhenPassed = true
	in.ActiveCertificate = &models.IssuedCertificate{Status: models.CertificateActive, Type: models.CertificateParticipation}
	if ok, reason := eligibility.AutoIssue(in); ok || reason != eligibility.ReasonAlreadyIssued {
		t.Fatalf("already issued: %v %s", ok, reason)
	}

	in.ActiveCertificate = nil
	in.Attendance = attended(models.AttendanceAbsent)
	if ok, reason := eligibility.AutoIssue(in); ok || reason != eligibility.ReasonAttendance {
		t.Fatalf("absent: %v %s", ok, reason)
	}
}
