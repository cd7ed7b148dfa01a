package app

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/metrics"
	"github.com/Spok95/drillcert/internal/observability"
)

const (
	headerRequestID  = "X-Request-ID"
	headerOperatorID = "X-Operator-ID"
)

func (s *server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(headerRequestID))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)
		next.ServeHTTP(w, r.WithContext(ctxutil.WithRequestID(r.Context(), id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument считает запросы по шаблону маршрута: r.Pattern заполняет ServeMux.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t0 := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		metrics.HTTPDuration.WithLabelValues(route).Observe(time.Since(t0).Seconds())
	})
}

func (s *server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				err := fmt.Errorf("panic: %v", v)
				s.log.Error("handler panic", zap.Error(err), zap.String("path", r.URL.Path), zap.Stack("stack"))
				observability.CaptureErrCtx(r.Context(), err)
				metrics.HandlerErrors.Inc()
				writeJSON(w, http.StatusInternalServerError, envelope{
					Code: string(apperr.CodeUnknown), Status: "error", Message: "internal error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// auth кладёт id оператора в контекст. С секретом — из sub JWT (HS256),
// без секрета (dev) — из заголовка X-Operator-ID.
func (s *server) auth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := s.operatorFrom(r)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctxutil.WithOperatorID(r.Context(), id)))
	})
}

func unauthenticated(msg string) error {
	return apperr.Invalid(apperr.CodeUnauthenticated, msg, nil)
}

func (s *server) operatorFrom(r *http.Request) (int64, error) {
	if len(s.secret) == 0 {
		raw := strings.TrimSpace(r.Header.Get(headerOperatorID))
		if raw == "" {
			return 0, unauthenticated("X-Operator-ID header is required")
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return 0, unauthenticated("X-Operator-ID must be a positive integer")
		}
		return id, nil
	}

	raw, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !found || strings.TrimSpace(raw) == "" {
		return 0, unauthenticated("bearer token is required")
	}
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return 0, unauthenticated("invalid token: " + err.Error())
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, unauthenticated("token subject must be an operator id")
	}
	return id, nil
}
