package export

import (
	"time"

	"github.com/Spok95/drillcert/internal/models"
)

var historyHeader = []string{
	"Number", "Participant", "Event", "Type", "Training type", "Score, %",
	"Issued at", "Auto", "Status", "Revoked at", "Revocation reason", "Verification code",
}

// CertificateHistory — книга с реестром выдачи, время в loc.
func CertificateHistory(rows []models.CertificateHistoryRow, loc *time.Location) (*Workbook, error) {
	return NewWorkbook([]SheetSpec{HistorySheet(rows, loc)})
}

func HistorySheet(rows []models.CertificateHistoryRow, loc *time.Location) SheetSpec {
	if loc == nil {
		loc = time.UTC
	}
	out := SheetSpec{Title: "Certificates", Header: historyHeader, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		var score any = ""
		if r.Score != nil {
			score = *r.Score
		}
		revokedAt, reason := "", ""
		if r.RevokedAt != nil {
			revokedAt = r.RevokedAt.In(loc).Format("2006-01-02 15:04")
		}
		if r.RevokedReason != nil {
			reason = *r.RevokedReason
		}
		out.Rows = append(out.Rows, []any{
			r.CertificateNumber,
			r.UserName,
			r.EventTitle,
			string(r.Type),
			r.TrainingType,
			score,
			r.IssuedAt.In(loc).Format("2006-01-02 15:04"),
			yesNo(r.AutoIssued),
			string(r.Status),
			revokedAt,
			reason,
			r.VerificationCode,
		})
	}
	return out
}

// SessionSummary — сводка по критериям и список участников с решением о допуске.
func SessionSummary(sum models.SessionSummary, participants []models.EligibleParticipant) (*Workbook, error) {
	return NewWorkbook([]SheetSpec{summarySheet(sum), participantsSheet(participants)})
}

func summarySheet(sum models.SessionSummary) SheetSpec {
	s := SheetSpec{
		Title:  "Summary",
		Header: []string{"Criterion", "Average", "Scored sheets"},
	}
	for _, c := range sum.PerCriterionAverage {
		s.Rows = append(s.Rows, []any{c.Criterion, c.Average, c.Count})
	}
	s.Rows = append(s.Rows,
		[]any{},
		[]any{"Overall average, %", sum.OverallAverage},
		[]any{"Participants", sum.TotalParticipants},
		[]any{"Submitted", sum.SubmittedCount},
		[]any{"Passed", sum.PassedCount},
		[]any{"Failed", sum.FailedCount},
		[]any{"Session status", string(sum.Status)},
	)
	return s
}

func participantsSheet(rows []models.EligibleParticipant) SheetSpec {
	s := SheetSpec{
		Title:  "Participants",
		Header: []string{"Participant", "Score, %", "Result", "Attendance", "Certification", "Reason", "Certificate issued"},
	}
	for _, p := range rows {
		var score any = ""
		if p.Score != nil {
			score = *p.Score
		}
		result := ""
		if p.Result != nil {
			result = string(*p.Result)
		}
		s.Rows = append(s.Rows, []any{
			p.User.Name, score, result, string(p.AttendanceStatus), string(p.CertStatus), p.Reason, yesNo(p.CertificateIssued),
		})
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
