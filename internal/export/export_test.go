package export_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/drillcert/internal/export"
	"github.com/Spok95/drillcert/internal/models"
)

func reopen(t *testing.T, wb *export.Workbook) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	if _, err := wb.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}
	_ = wb.Close()
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestCertificateHistory(t *testing.T) {
	msk := time.FixedZone("MSK", 3*3600)
	score := 72.5
	reason := "typo in name"
	revoked := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	rows := []models.CertificateHistoryRow{
		{
			IssuedCertificate: models.IssuedCertificate{
				CertificateNumber: "CERT-2025-0001", Type: models.CertificateCompletion, TrainingType: "Flood response",
				Score: &score, IssuedAt: time.Date(2025, 3, 14, 22, 30, 0, 0, time.UTC), AutoIssued: true,
				Status: models.CertificateRevoked, RevokedAt: &revoked, RevokedReason: &reason, VerificationCode: "code-1",
			},
			UserName: "Ann", EventTitle: "Flood drill",
		},
		{
			IssuedCertificate: models.IssuedCertificate{
				CertificateNumber: "CERT-2025-0002", Type: models.CertificateParticipation,
				IssuedAt: time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC), Status: models.CertificateActive,
			},
			UserName: "Bob", EventTitle: "Flood drill",
		},
	}
	wb, err := export.CertificateHistory(rows, msk)
	if err != nil {
		t.Fatal(err)
	}
	f := reopen(t, wb)

	got, err := f.GetRows("Certificates")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(got))
	}
	if got[0][0] != "Number" || got[1][0] != "CERT-2025-0001" || got[2][1] != "Bob" {
		t.Fatalf("unexpected table: %v", got)
	}
	// выдача 22:30 UTC — уже следующий день по Москве
	if got[1][6] != "2025-03-15 01:30" {
		t.Fatalf("issued at = %q", got[1][6])
	}
	if got[1][5] != "72.5" || got[1][7] != "yes" || got[1][10] != reason {
		t.Fatalf("row 1 = %v", got[1])
	}
	if v, _ := f.GetCellValue("Certificates", "F3"); v != "" {
		t.Fatalf("participation score must be blank, got %q", v)
	}
}

func TestSessionSummary(t *testing.T) {
	pct := 70.0
	passed := models.ResultPassed
	sum := models.SessionSummary{
		Status: models.SessionLocked,
		PerCriterionAverage: []models.CriterionAverage{
			{Criterion: "triage", Average: 7, Count: 1},
			{Criterion: "safety", Average: 6.5, Count: 2},
		},
		OverallAverage: 65, TotalParticipants: 3, SubmittedCount: 2, PassedCount: 1, FailedCount: 1,
	}
	people := []models.EligibleParticipant{
		{User: models.User{Name: "Ann"}, Score: &pct, Result: &passed, AttendanceStatus: models.AttendancePresent, CertStatus: models.Eligible, Reason: "eligible"},
		{User: models.User{Name: "Cid"}, AttendanceStatus: models.AttendanceNotMarked, CertStatus: models.Pending, Reason: "no_evaluation"},
	}
	wb, err := export.SessionSummary(sum, people)
	if err != nil {
		t.Fatal(err)
	}
	f := reopen(t, wb)

	if names := f.GetSheetList(); strings.Join(names, ",") != "Summary,Participants" {
		t.Fatalf("sheets = %v", names)
	}
	rows, _ := f.GetRows("Summary")
	if rows[1][0] != "triage" || rows[2][1] != "6.5" {
		t.Fatalf("summary = %v", rows)
	}
	parts, _ := f.GetRows("Participants")
	if len(parts) != 3 || parts[1][4] != "eligible" || parts[2][5] != "no_evaluation" {
		t.Fatalf("participants = %v", parts)
	}
}

func TestNewWorkbook_SanitizesSheetNames(t *testing.T) {
	wb, err := export.NewWorkbook([]export.SheetSpec{{Title: "Flood drill [2025/03] with a very long title over the limit", Header: []string{"A"}}})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = wb.Close() }()
	name := wb.File.GetSheetName(0)
	if strings.ContainsAny(name, "[]/") || len([]rune(name)) > 31 {
		t.Fatalf("sheet name %q", name)
	}
	if _, err := export.NewWorkbook(nil); err == nil {
		t.Fatal("empty workbook must be rejected")
	}
}

func TestFilenames(t *testing.T) {
	from := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	if got := export.BuildHistoryFilename(&from, &to, time.UTC); got != "Certificates — 2025-03-01 - 2025-03-31.xlsx" {
		t.Fatalf("history filename = %q", got)
	}
	if got := export.BuildHistoryFilename(nil, nil, time.UTC); got != "Certificates — all time.xlsx" {
		t.Fatalf("history filename = %q", got)
	}
	if got := export.BuildSummaryFilename("Fire: drill / east", from); got != "Session summary — Fire_ drill _ east — 2025-03-01.xlsx" {
		t.Fatalf("summary filename = %q", got)
	}
}
