package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/engine"
	"github.com/Spok95/drillcert/internal/metrics"
)

// Deps — зависимости HTTP-слоя. Пустой JWTSecret включает dev-режим
// с оператором из заголовка X-Operator-ID.
type Deps struct {
	DB        *sql.DB
	Engine    *engine.Service
	Log       *zap.Logger
	JWTSecret string
	Location  *time.Location
}

type server struct {
	db       *sql.DB
	engine   *engine.Service
	log      *zap.Logger
	secret   []byte
	loc      *time.Location
	validate *validator.Validate
}

type HTTPServer struct {
	srv *http.Server
}

func StartHTTP(ctx context.Context, addr string, d Deps) *HTTPServer {
	srv := &http.Server{
		Addr:              addr,
		Handler:           NewHandler(d),
		ReadHeaderTimeout: 5 * time.Second,
	}
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", zap.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
	}()

	return &HTTPServer{srv: srv}
}

func NewHandler(d Deps) http.Handler {
	s := &server{
		db:       d.DB,
		engine:   d.Engine,
		log:      d.Log,
		secret:   []byte(d.JWTSecret),
		loc:      d.Location,
		validate: newValidator(),
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.loc == nil {
		s.loc = time.UTC
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.healthz)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.HandleFunc("GET /api/verify/{number}", s.verify)

	api := func(pattern string, h http.HandlerFunc) { mux.Handle(pattern, s.auth(h)) }

	api("POST /api/events/{eventID}/session", s.openSession)
	api("GET /api/events/{eventID}/session", s.getSessionByEvent)
	api("GET /api/events/{eventID}/eligible", s.eligible)

	api("POST /api/sessions/{sessionID}/complete", s.completeSession)
	api("POST /api/sessions/{sessionID}/reopen", s.reopenSession)
	api("POST /api/sessions/{sessionID}/lock", s.lockSession)
	api("GET /api/sessions/{sessionID}/summary", s.sessionSummary)
	api("GET /api/sessions/{sessionID}/participants/{userID}", s.getEvaluation)
	api("PUT /api/sessions/{sessionID}/participants/{userID}/scores/{criterion}", s.recordScore)
	api("PUT /api/sessions/{sessionID}/participants/{userID}/feedback", s.setFeedback)
	api("POST /api/sessions/{sessionID}/participants/{userID}/submit", s.submit)
	api("POST /api/sessions/{sessionID}/participants/{userID}/approve", s.approve)

	api("GET /api/settings/automation", s.getSettings)
	api("PUT /api/settings/automation", s.putSettings)
	api("DELETE /api/settings/automation", s.resetSettings)

	api("POST /api/templates", s.createTemplate)
	api("GET /api/templates", s.listTemplates)
	api("GET /api/templates/{id}", s.getTemplate)
	api("PUT /api/templates/{id}/status", s.setTemplateStatus)
	api("POST /api/templates/{id}/preview", s.previewTemplate)

	api("POST /api/certificates", s.issue)
	api("GET /api/certificates", s.history)
	api("GET /api/certificates/{id}", s.getCertificate)
	api("GET /api/certificates/{id}/document", s.document)
	api("POST /api/certificates/{id}/revoke", s.revoke)

	api("GET /api/stats/certificates", s.stats)

	return s.requestID(s.instrument(s.recoverer(mux)))
}

// healthz — живость процесса и доступность БД.
func (s *server) healthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 800*time.Millisecond)
	defer cancel()
	t0 := time.Now()
	if err := s.db.PingContext(ctx); err != nil {
		http.Error(w, "db not ok: "+err.Error(), http.StatusServiceUnavailable)
		return
	}
	metrics.ObserveDBPing(time.Since(t0))
	_, _ = w.Write([]byte("ok"))
}

// newValidator сообщает об ошибках по json-именам полей.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
