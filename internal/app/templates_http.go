package app

import (
	"net/http"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/engine"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/render"
)

type statusRequest struct {
	Status models.TemplateStatus `json:"status" validate:"required,oneof=active inactive"`
}

func (s *server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req engine.TemplateInput
	if err := s.decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.engine.CreateTemplate(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t.Background = nil
	ok(w, http.StatusCreated, "template created", t)
}

func (s *server) listTemplates(w http.ResponseWriter, r *http.Request) {
	var status *models.TemplateStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st := models.TemplateStatus(v)
		if st != models.TemplateActive && st != models.TemplateInactive {
			s.fail(w, r, apperr.Invalid(apperr.CodeRequestInvalid, "status must be active or inactive", map[string]string{"status": v}))
			return
		}
		status = &st
	}
	list, err := s.engine.ListTemplates(r.Context(), status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if list == nil {
		list = []models.CertificateTemplate{}
	}
	ok(w, http.StatusOK, "", list)
}

func (s *server) getTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.engine.GetTemplate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", t)
}

func (s *server) setTemplateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req statusRequest
	if err := s.decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	t, err := s.engine.SetTemplateStatus(r.Context(), id, req.Status)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	t.Background = nil
	ok(w, http.StatusOK, "template status changed", t)
}

// previewTemplate — рендер без записи; тело — необязательный образец контекста.
func (s *server) previewTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var sample render.Context
	if err := s.decode(r, &sample, true); err != nil {
		s.fail(w, r, err)
		return
	}
	p, err := s.engine.PreviewTemplate(r.Context(), id, sample)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", p)
}

func (s *server) getSettings(w http.ResponseWriter, r *http.Request) {
	eventID, err := queryID(r, "event_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.GetSettings(r.Context(), eventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", st)
}

func (s *server) putSettings(w http.ResponseWriter, r *http.Request) {
	eventID, err := queryID(r, "event_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req models.AutomationSettings
	if err := s.decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.PutSettings(r.Context(), eventID, req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "settings saved", st)
}

// resetSettings снимает переопределение мероприятия; глобальные настройки не удаляются.
func (s *server) resetSettings(w http.ResponseWriter, r *http.Request) {
	eventID, err := queryID(r, "event_id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if eventID == nil {
		s.fail(w, r, apperr.Invalid(apperr.CodeRequestInvalid, "event_id is required", nil))
		return
	}
	if err := s.engine.ResetEventSettings(r.Context(), *eventID); err != nil {
		s.fail(w, r, err)
		return
	}
	st, err := s.engine.GetSettings(r.Context(), eventID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "event override removed", st)
}
