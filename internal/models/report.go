package models

import "time"

type EligibilityStatus string

const (
	Eligible    EligibilityStatus = "eligible"
	NotEligible EligibilityStatus = "not_eligible"
	Pending     EligibilityStatus = "pending"
)

// EligibleParticipant — строка очереди ручной выдачи / списка допущенных.
type EligibleParticipant struct {
	User              User              `json:"user"`
	EventID           int64             `json:"event_id"`
	EventTitle        string            `json:"event_title"`
	EvaluationID      *int64            `json:"evaluation_id,omitempty"`
	Score             *float64          `json:"score,omitempty"`
	Result            *Result           `json:"result,omitempty"`
	AttendanceStatus  AttendanceStatus  `json:"attendance_status"`
	CertStatus        EligibilityStatus `json:"cert_status"`
	Reason            string            `json:"reason,omitempty"`
	CertificateIssued bool              `json:"certificate_issued"`
	CertificateID     *int64            `json:"certificate_id,omitempty"`
}

// CertificateStats — сводка по выданным сертификатам.
// TrendThisWeek — изменение числа выдач к прошлой неделе в процентах.
type CertificateStats struct {
	TotalCertified        int     `json:"total_certified"`
	PendingCertifications int     `json:"pending_certifications"`
	IssuedToday           int     `json:"issued_today"`
	IssuedThisWeek        int     `json:"issued_this_week"`
	IssuedLastWeek        int     `json:"issued_last_week"`
	TrendThisWeek         float64 `json:"trend_this_week"`
}

type CriterionAverage struct {
	Criterion string  `json:"criterion"`
	Average   float64 `json:"average"`
	Count     int     `json:"count"`
}

// SessionSummary — агрегаты по отправленным листам одной сессии.
type SessionSummary struct {
	SessionID           int64              `json:"session_id"`
	EventID             int64              `json:"event_id"`
	EventTitle          string             `json:"event_title"`
	Status              SessionStatus      `json:"status"`
	PerCriterionAverage []CriterionAverage `json:"per_criterion_average"`
	OverallAverage      float64            `json:"overall_average"`
	TotalParticipants   int                `json:"total_participants"`
	SubmittedCount      int                `json:"submitted_count"`
	PassedCount         int                `json:"passed_count"`
	FailedCount         int                `json:"failed_count"`
}

// CertificateFilter — фильтры истории выдачи. Нулевые значения не фильтруют.
type CertificateFilter struct {
	EventID      *int64
	NumberSubstr string
	From         *time.Time
	To           *time.Time
	Status       *CertificateStatus
	Limit        int
	Offset       int
}

// CertificateHistoryRow — сертификат с именами для истории и экспорта.
type CertificateHistoryRow struct {
	IssuedCertificate
	UserName   string `db:"user_name" json:"user_name"`
	EventTitle string `db:"event_title" json:"event_title"`
}
