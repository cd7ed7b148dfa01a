package apperr

import (
	"fmt"
	"strings"
	"time"
)

// InvalidScoreError — оценка вне [0, 10] или критерий не из каталога сценария.
type InvalidScoreError struct {
	Criterion string
	Score     int
	Reason    string
}

func (e *InvalidScoreError) Error() string {
	return fmt.Sprintf("invalid score %d for criterion %q: %s", e.Score, e.Criterion, e.Reason)
}
func (e *InvalidScoreError) Code() Code         { return CodeScoreInvalid }
func (e *InvalidScoreError) Category() Category { return CategoryValidation }

// IncompleteScoresError перечисляет критерии без оценки.
type IncompleteScoresError struct {
	Missing []string
}

func (e *IncompleteScoresError) Error() string {
	return "missing scores for criteria: " + strings.Join(e.Missing, ", ")
}
func (e *IncompleteScoresError) Code() Code         { return CodeScoresIncomplete }
func (e *IncompleteScoresError) Category() Category { return CategoryValidation }

type SessionLockedError struct {
	SessionID int64
}

func (e *SessionLockedError) Error() string {
	return fmt.Sprintf("scoring session %d is locked", e.SessionID)
}
func (e *SessionLockedError) Code() Code         { return CodeSessionLocked }
func (e *SessionLockedError) Category() Category { return CategoryState }

type AlreadyLockedError struct {
	SessionID int64
	LockedAt  *time.Time
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("scoring session %d is already locked", e.SessionID)
}
func (e *AlreadyLockedError) Code() Code         { return CodeSessionAlreadyLocked }
func (e *AlreadyLockedError) Category() Category { return CategoryState }

// InvalidTransitionError — недопустимый переход состояния сессии.
type InvalidTransitionError struct {
	SessionID int64
	From      string
	To        string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("scoring session %d: cannot move from %s to %s", e.SessionID, e.From, e.To)
}
func (e *InvalidTransitionError) Code() Code         { return CodeInvalidTransition }
func (e *InvalidTransitionError) Category() Category { return CategoryState }

type AlreadyRevokedError struct {
	CertificateID int64
	RevokedAt     *time.Time
}

func (e *AlreadyRevokedError) Error() string {
	return fmt.Sprintf("certificate %d is not active", e.CertificateID)
}
func (e *AlreadyRevokedError) Code() Code         { return CodeAlreadyRevoked }
func (e *AlreadyRevokedError) Category() Category { return CategoryState }

// NotSubmittedError — операция требует отправленного листа оценки.
type NotSubmittedError struct {
	EvaluationID int64
}

func (e *NotSubmittedError) Error() string {
	return fmt.Sprintf("evaluation %d is not submitted", e.EvaluationID)
}
func (e *NotSubmittedError) Code() Code         { return CodeEvaluationNotReady }
func (e *NotSubmittedError) Category() Category { return CategoryState }

// EvaluationSubmittedError — оценки отправленного листа только на чтение.
type EvaluationSubmittedError struct {
	EvaluationID int64
}

func (e *EvaluationSubmittedError) Error() string {
	return fmt.Sprintf("evaluation %d is already submitted, scores are read-only", e.EvaluationID)
}
func (e *EvaluationSubmittedError) Code() Code         { return CodeEvaluationSubmitted }
func (e *EvaluationSubmittedError) Category() Category { return CategoryState }

// ExistingCertificate — ссылка на действующий сертификат, чтобы предложить «посмотреть», а не повторять выдачу.
type ExistingCertificate struct {
	ID                int64     `json:"id"`
	CertificateNumber string    `json:"certificate_number"`
	IssuedAt          time.Time `json:"issued_at"`
}

type DuplicateCertificateError struct {
	UserID   int64
	EventID  int64
	Type     string
	Existing ExistingCertificate
}

func (e *DuplicateCertificateError) Error() string {
	return fmt.Sprintf("active %s certificate %s already exists for user %d, event %d",
		e.Type, e.Existing.CertificateNumber, e.UserID, e.EventID)
}
func (e *DuplicateCertificateError) Code() Code         { return CodeDuplicateCertificate }
func (e *DuplicateCertificateError) Category() Category { return CategoryConflict }

// StaleEvaluationError — лист изменён другим оператором после того, как вызывающий его прочитал.
type StaleEvaluationError struct {
	EvaluationID int64
	Expected     int64
	Actual       int64
}

func (e *StaleEvaluationError) Error() string {
	return fmt.Sprintf("evaluation %d: version %d expected, current is %d", e.EvaluationID, e.Expected, e.Actual)
}
func (e *StaleEvaluationError) Code() Code         { return CodeStaleEvaluation }
func (e *StaleEvaluationError) Category() Category { return CategoryConflict }

type InvalidTemplateError struct {
	Field  string
	Reason string
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid template %s: %s", e.Field, e.Reason)
}
func (e *InvalidTemplateError) Code() Code         { return CodeTemplateInvalid }
func (e *InvalidTemplateError) Category() Category { return CategoryValidation }

type TemplateInactiveError struct {
	TemplateID int64
}

func (e *TemplateInactiveError) Error() string {
	return fmt.Sprintf("certificate template %d is inactive", e.TemplateID)
}
func (e *TemplateInactiveError) Code() Code         { return CodeTemplateInactive }
func (e *TemplateInactiveError) Category() Category { return CategoryState }

type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}
func (e *NotFoundError) Code() Code         { return CodeNotFound }
func (e *NotFoundError) Category() Category { return CategoryNotFound }

// NotFound — краткая форма для числовых id.
func NotFound(entity string, id int64) *NotFoundError {
	return &NotFoundError{Entity: entity, ID: fmt.Sprint(id)}
}

// ValidationError — ошибка входных данных, не привязанная к конкретному правилу домена.
type ValidationError struct {
	code    Code
	Message string
	Fields  map[string]string
}

func Invalid(code Code, message string, fields map[string]string) *ValidationError {
	return &ValidationError{code: code, Message: message, Fields: fields}
}

func (e *ValidationError) Error() string      { return e.Message }
func (e *ValidationError) Code() Code         { return e.code }
func (e *ValidationError) Category() Category { return CategoryValidation }
