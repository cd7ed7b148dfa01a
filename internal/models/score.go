package models

import "time"

type SessionStatus string

const (
	SessionNotStarted SessionStatus = "not_started"
	SessionInProgress SessionStatus = "in_progress"
	SessionCompleted  SessionStatus = "completed"
	SessionLocked     SessionStatus = "locked"
)

// ScoringSession — контейнер оценки на одно мероприятие.
type ScoringSession struct {
	ID        int64         `db:"id" json:"id"`
	EventID   int64         `db:"event_id" json:"event_id"`
	Status    SessionStatus `db:"status" json:"status"`
	LockedAt  *time.Time    `db:"locked_at" json:"locked_at,omitempty"`
	LockedBy  *int64        `db:"locked_by" json:"locked_by,omitempty"`
	CreatedAt time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt time.Time     `db:"updated_at" json:"updated_at"`
}

func (s ScoringSession) IsLocked() bool { return s.Status == SessionLocked }

type EvaluationStatus string

const (
	EvaluationDraft     EvaluationStatus = "draft"
	EvaluationSubmitted EvaluationStatus = "submitted"
)

type Result string

const (
	ResultPassed Result = "passed"
	ResultFailed Result = "failed"
)

// CriterionScore — оценка по одному критерию с необязательным комментарием.
type CriterionScore struct {
	Score   int     `db:"score" json:"score"`
	Comment *string `db:"comment" json:"comment,omitempty"`
}

// ParticipantEvaluation — лист оценки одного участника в сессии.
// Агрегаты заполняются только при отправке.
type ParticipantEvaluation struct {
	ID              int64                     `db:"id" json:"id"`
	SessionID       int64                     `db:"session_id" json:"session_id"`
	EventID         int64                     `db:"event_id" json:"event_id"`
	UserID          int64                     `db:"user_id" json:"user_id"`
	Status          EvaluationStatus          `db:"status" json:"status"`
	Scores          map[string]CriterionScore `json:"scores"`
	OverallFeedback *string                   `db:"overall_feedback" json:"overall_feedback,omitempty"`
	TotalScore      int                       `db:"total_score" json:"total_score"`
	MaxScore        int                       `db:"max_score" json:"max_score"`
	Percentage      float64                   `db:"percentage" json:"percentage"`
	Result          *Result                   `db:"result" json:"result,omitempty"`
	ApprovedBy      *int64                    `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time                `db:"approved_at" json:"approved_at,omitempty"`
	SubmittedBy     *int64                    `db:"submitted_by" json:"submitted_by,omitempty"`
	SubmittedAt     *time.Time                `db:"submitted_at" json:"submitted_at,omitempty"`
	Version         int64                     `db:"version" json:"version"`
	CreatedAt       time.Time                 `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time                 `db:"updated_at" json:"updated_at"`
}

func (e ParticipantEvaluation) Passed() bool {
	return e.Status == EvaluationSubmitted && e.Result != nil && *e.Result == ResultPassed
}

func (e ParticipantEvaluation) Approved() bool { return e.ApprovedAt != nil }

// SubmissionEvent — доменное событие, которое движок обрабатывает синхронно в той же транзакции.
type SubmissionEvent struct {
	Evaluation ParticipantEvaluation
	Event      Event
	OperatorID int64
}
