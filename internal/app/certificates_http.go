package app

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/engine"
	"github.com/Spok95/drillcert/internal/export"
	"github.com/Spok95/drillcert/internal/logging"
	"github.com/Spok95/drillcert/internal/models"
)

type revokeRequest struct {
	Reason *string `json:"reason,omitempty" validate:"omitempty,max=500"`
}

func (s *server) issue(w http.ResponseWriter, r *http.Request) {
	var req engine.IssueRequest
	if err := s.decode(r, &req, false); err != nil {
		s.fail(w, r, err)
		return
	}
	cert, err := s.engine.Issue(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusCreated, "certificate issued", cert)
}

func (s *server) history(w http.ResponseWriter, r *http.Request) {
	f, err := s.historyFilter(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.engine.History(r.Context(), f)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if !wantsXLSX(r) {
		if rows == nil {
			rows = []models.CertificateHistoryRow{}
		}
		ok(w, http.StatusOK, "", rows)
		return
	}
	wb, err := export.CertificateHistory(rows, s.loc)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	to := f.To
	if to != nil {
		last := to.AddDate(0, 0, -1)
		to = &last
	}
	s.writeWorkbook(w, r, wb, export.BuildHistoryFilename(f.From, to, s.loc))
}

// historyFilter: event_id, number, status, from/to (YYYY-MM-DD в часовом поясе сервиса,
// to включительно), limit, offset.
func (s *server) historyFilter(r *http.Request) (models.CertificateFilter, error) {
	q := r.URL.Query()
	var (
		f   models.CertificateFilter
		err error
	)
	if f.EventID, err = queryID(r, "event_id"); err != nil {
		return f, err
	}
	f.NumberSubstr = strings.TrimSpace(q.Get("number"))
	if v := q.Get("status"); v != "" {
		st := models.CertificateStatus(v)
		if st != models.CertificateActive && st != models.CertificateRevoked {
			return f, apperr.Invalid(apperr.CodeRequestInvalid, "status must be active or revoked", map[string]string{"status": v})
		}
		f.Status = &st
	}
	if v := q.Get("from"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, s.loc)
		if err != nil {
			return f, apperr.Invalid(apperr.CodeRequestInvalid, "from must be YYYY-MM-DD", map[string]string{"from": v})
		}
		f.From = &d
	}
	if v := q.Get("to"); v != "" {
		d, err := time.ParseInLocation("2006-01-02", v, s.loc)
		if err != nil {
			return f, apperr.Invalid(apperr.CodeRequestInvalid, "to must be YYYY-MM-DD", map[string]string{"to": v})
		}
		end := d.AddDate(0, 0, 1)
		f.To = &end
	}
	for name, dst := range map[string]*int{"limit": &f.Limit, "offset": &f.Offset} {
		if v := q.Get(name); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return f, apperr.Invalid(apperr.CodeRequestInvalid, name+" must be a non-negative integer", map[string]string{name: v})
			}
			*dst = n
		}
	}
	return f, nil
}

func (s *server) getCertificate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.engine.GetCertificate(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", c)
}

// document — печатная страница, сохранённая при выдаче.
func (s *server) document(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	page, err := s.engine.Document(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Security-Policy", "default-src 'none'; img-src data:; style-src 'unsafe-inline'")
	_, _ = w.Write([]byte(page))
}

func (s *server) revoke(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	var req revokeRequest
	if err := s.decode(r, &req, true); err != nil {
		s.fail(w, r, err)
		return
	}
	c, err := s.engine.Revoke(r.Context(), id, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "certificate revoked", c)
}

// verify — публичная проверка подлинности по номеру или коду.
func (s *server) verify(w http.ResponseWriter, r *http.Request) {
	v, err := s.engine.Verify(r.Context(), r.PathValue("number"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", v)
}

func (s *server) stats(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.CertificateStats(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	ok(w, http.StatusOK, "", st)
}

func wantsXLSX(r *http.Request) bool {
	return strings.EqualFold(r.URL.Query().Get("format"), "xlsx")
}

func (s *server) writeWorkbook(w http.ResponseWriter, r *http.Request, wb *export.Workbook, filename string) {
	defer func() { _ = wb.Close() }()
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename*=UTF-8''`+url.PathEscape(filename))
	if _, err := wb.WriteTo(w); err != nil {
		// заголовки уже отправлены, остаётся только лог
		logging.With(r.Context(), s.log).Warn("xlsx write failed", zap.Error(err))
	}
}
