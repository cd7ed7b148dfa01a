package app

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/logging"
	"github.com/Spok95/drillcert/internal/metrics"
	"github.com/Spok95/drillcert/internal/observability"
)

// envelope — единый формат ответа API.
type envelope struct {
	Code    any    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Code: status, Status: "success", Message: message, Data: data})
}

// fail отвечает ошибкой: доменные — с кодом и деталями, прочие — 500 без подробностей.
func (s *server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logging.With(r.Context(), s.log).Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		observability.CaptureErrCtx(r.Context(), err)
		metrics.HandlerErrors.Inc()
		writeJSON(w, status, envelope{Code: string(apperr.CodeUnknown), Status: "error", Message: "internal error"})
		return
	}
	writeJSON(w, status, envelope{
		Code:    string(apperr.CodeOf(err)),
		Status:  "error",
		Message: err.Error(),
		Details: details(err),
	})
}

// details — машиночитаемые подробности для клиента.
func details(err error) any {
	var (
		inv   *apperr.InvalidScoreError
		inc   *apperr.IncompleteScoresError
		dup   *apperr.DuplicateCertificateError
		stale *apperr.StaleEvaluationError
		tpl   *apperr.InvalidTemplateError
		trans *apperr.InvalidTransitionError
		val   *apperr.ValidationError
	)
	switch {
	case errors.As(err, &inv):
		return map[string]any{"criterion": inv.Criterion, "score": inv.Score, "reason": inv.Reason}
	case errors.As(err, &inc):
		return map[string]any{"missing": inc.Missing}
	case errors.As(err, &dup):
		return map[string]any{"existing": dup.Existing}
	case errors.As(err, &stale):
		return map[string]any{"expected_version": stale.Expected, "actual_version": stale.Actual}
	case errors.As(err, &tpl):
		return map[string]any{"field": tpl.Field, "reason": tpl.Reason}
	case errors.As(err, &trans):
		return map[string]any{"from": trans.From, "to": trans.To}
	case errors.As(err, &val) && len(val.Fields) > 0:
		return val.Fields
	}
	return nil
}

// decode читает JSON-тело и проверяет теги validate. Пустое тело допустимо, если allowEmpty.
func (s *server) decode(r *http.Request, dst any, allowEmpty bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 8<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if !(allowEmpty && errors.Is(err, io.EOF)) {
			return apperr.Invalid(apperr.CodeRequestInvalid, "invalid JSON body: "+err.Error(), nil)
		}
	}
	if err := s.validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			return apperr.Invalid(apperr.CodeRequestInvalid, "invalid input", nil)
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		return apperr.Invalid(apperr.CodeRequestInvalid, "validation failed", fields)
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Invalid(apperr.CodeRequestInvalid, name+" must be a positive integer", map[string]string{name: raw})
	}
	return id, nil
}

// queryID — необязательный id из query-строки.
func queryID(r *http.Request, name string) (*int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.Invalid(apperr.CodeRequestInvalid, name+" must be a positive integer", map[string]string{name: raw})
	}
	return &id, nil
}
