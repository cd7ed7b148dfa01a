// Package apperr описывает таксономию ошибок движка оценки и сертификации:
// валидация, состояние, конфликт, отсутствие сущности.
package apperr

import (
	"errors"
	"net/http"
)

// Code — машиночитаемый код ошибки.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation
	CodeScoreInvalid      Code = "SCORE_INVALID"
	CodeScoresIncomplete  Code = "SCORES_INCOMPLETE"
	CodeTemplateInvalid   Code = "TEMPLATE_INVALID"
	CodeRequestInvalid    Code = "REQUEST_INVALID"
	CodeUnauthenticated   Code = "UNAUTHENTICATED"
	CodeSettingsInvalid   Code = "SETTINGS_INVALID"
	CodeCertificateTypeNA Code = "CERTIFICATE_TYPE_INVALID"

	// State
	CodeSessionLocked        Code = "SESSION_LOCKED"
	CodeSessionAlreadyLocked Code = "SESSION_ALREADY_LOCKED"
	CodeInvalidTransition    Code = "SESSION_INVALID_TRANSITION"
	CodeAlreadyRevoked       Code = "CERTIFICATE_ALREADY_REVOKED"
	CodeTemplateInactive     Code = "TEMPLATE_INACTIVE"
	CodeEvaluationNotReady   Code = "EVALUATION_NOT_SUBMITTED"
	CodeEvaluationSubmitted  Code = "EVALUATION_ALREADY_SUBMITTED"

	// Conflict
	CodeDuplicateCertificate Code = "CERTIFICATE_DUPLICATE"
	CodeStaleEvaluation      Code = "EVALUATION_STALE"

	CodeNotFound Code = "NOT_FOUND"
)

// Category — класс ошибки, определяющий, как её показывать вызывающему.
type Category string

const (
	CategoryValidation Category = "validation"
	CategoryState      Category = "state"
	CategoryConflict   Category = "conflict"
	CategoryNotFound   Category = "not_found"
	CategoryInternal   Category = "internal"
)

// Coded реализуют все доменные ошибки пакета.
type Coded interface {
	error
	Code() Code
	Category() Category
}

// CodeOf возвращает код доменной ошибки в цепочке err или CodeUnknown.
func CodeOf(err error) Code {
	var c Coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeUnknown
}

// CategoryOf возвращает категорию доменной ошибки, для прочих — CategoryInternal.
func CategoryOf(err error) Category {
	var c Coded
	if errors.As(err, &c) {
		return c.Category()
	}
	return CategoryInternal
}

// HTTPStatus сопоставляет доменные ошибки со статусами HTTP.
func HTTPStatus(err error) int {
	if CodeOf(err) == CodeUnauthenticated {
		return http.StatusUnauthorized
	}
	switch CategoryOf(err) {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryState, CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
