package observability

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/Spok95/drillcert/internal/ctxutil"
)

func InitSentry(dsn, env, release string) (func(), error) {
	if dsn == "" {
		return func() {}, nil
	}
	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         dsn,
		Environment: env,
		Release:     release,
	}); err != nil {
		return func() {}, err
	}
	return func() { sentry.Flush(2 * time.Second) }, nil
}

func CaptureErr(err error) {
	if err != nil {
		sentry.CaptureException(err)
	}
}

// CaptureErrCtx — то же с тегами запроса, чтобы событие в Sentry связывалось с логами.
func CaptureErrCtx(ctx context.Context, err error) {
	if err == nil {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		if id, ok := ctxutil.RequestID(ctx); ok {
			scope.SetTag("request_id", id)
		}
		if op, ok := ctxutil.Op(ctx); ok {
			scope.SetTag("op", op)
		}
		sentry.CaptureException(err)
	})
}
