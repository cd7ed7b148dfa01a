package logging_test

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/logging"
)

func TestWithAddsContextFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := ctxutil.WithRequestID(context.Background(), "req-1")
	ctx = ctxutil.WithOperatorID(ctx, 77)
	ctx = ctxutil.WithOp(ctx, "submit")

	logging.With(ctx, base).Info("submitted")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" || fields["operator_id"] != int64(77) || fields["op"] != "submit" {
		t.Fatalf("fields = %v", fields)
	}
}

func TestInitFallsBackToInfo(t *testing.T) {
	l, err := logging.Init("nonsense", "dev")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Closer()
	if l.Level.Level() != zap.InfoLevel {
		t.Fatalf("level = %s", l.Level.Level())
	}
}
