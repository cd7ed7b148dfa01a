package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/Spok95/drillcert/internal/metrics"
	"github.com/Spok95/drillcert/internal/models"
)

func TestRunner_RunsImmediatelyAndStops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(ctx, nil)

	var calls atomic.Int32
	ran := make(chan struct{}, 10)
	r.Every(time.Hour, "immediate", func(context.Context) error {
		calls.Add(1)
		ran <- struct{}{}
		return nil
	})
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()
	r.Wait()
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}
	if ts := gauge(t, jobLastSuccess.WithLabelValues("immediate")); ts < float64(time.Now().Add(-time.Minute).Unix()) {
		t.Fatalf("last success timestamp = %v", ts)
	}
}

func TestRunner_SurvivesPanicsAndErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r := New(ctx, nil)

	var calls atomic.Int32
	done := make(chan struct{})
	r.Every(5*time.Millisecond, "flaky", func(context.Context) error {
		switch calls.Add(1) {
		case 1:
			panic("boom")
		case 2:
			return errors.New("transient")
		case 3:
			close(done)
		}
		return nil
	})
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("runner stopped after %d calls", calls.Load())
	}
	cancel()
	r.Wait()
}

type fakeStats struct {
	st  models.CertificateStats
	err error
}

func (f fakeStats) CertificateStats(context.Context) (models.CertificateStats, error) { return f.st, f.err }

func gauge(t *testing.T, g interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	if err := g.Write(&m); err != nil {
		t.Fatal(err)
	}
	return m.GetGauge().GetValue()
}

func TestRefreshCertificationGauges(t *testing.T) {
	job := RefreshCertificationGauges(fakeStats{st: models.CertificateStats{TotalCertified: 12, PendingCertifications: 3}})
	if err := job(context.Background()); err != nil {
		t.Fatal(err)
	}
	if got := gauge(t, metrics.CertifiedTotal); got != 12 {
		t.Fatalf("certified_total = %v", got)
	}
	if got := gauge(t, metrics.PendingCertifications); got != 3 {
		t.Fatalf("pending_certifications = %v", got)
	}

	failing := RefreshCertificationGauges(fakeStats{err: errors.New("db down")})
	if err := failing(context.Background()); err == nil {
		t.Fatal("want error")
	}
	if got := gauge(t, metrics.CertifiedTotal); got != 12 {
		t.Fatalf("failed refresh must keep last value, got %v", got)
	}
}
