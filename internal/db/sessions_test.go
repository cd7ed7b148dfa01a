//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"database/sql"
	"sync"
	"testing"

	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/testutil/testdb"
)

func TestEnsureSession_ConcurrentCallsConverge(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	f := testdb.MustSeed(t, h.DB, 0)

	ids := make(chan int64, 20)
	created := make(chan bool, 20)
	wg := sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, c, err := db.EnsureSessionContext(ctx, h.DB, f.EventID)
			if err != nil {
				t.Errorf("ensure: %v", err)
				return
			}
			ids <- s.ID
			created <- c
		}()
	}
	wg.Wait()
	close(ids)
	close(created)

	var first int64
	for id := range ids {
		if first == 0 {
			first = id
		}
		if id != first {
			t.Fatalf("sessions diverged: %d vs %d", id, first)
		}
	}
	n := 0
	for c := range created {
		if c {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("created reported %d times, want 1", n)
	}
}

func TestSaveSessionStatus_LockedIsTerminal(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	f := testdb.MustSeed(t, h.DB, 0)
	s, _, err := db.EnsureSessionContext(ctx, h.DB, f.EventID)
	if err != nil {
		t.Fatal(err)
	}

	s.Status = models.SessionLocked
	at := s.CreatedAt
	s.LockedAt = &at
	s.LockedBy = &f.OperatorID
	if err := db.SaveSessionStatusContext(ctx, h.DB, &s); err != nil {
		t.Fatalf("lock: %v", err)
	}

	s.Status = models.SessionInProgress
	s.LockedAt, s.LockedBy = nil, nil
	if err := db.SaveSessionStatusContext(ctx, h.DB, &s); err == nil {
		t.Fatal("updating a locked session must fail")
	}
}

func TestEvaluationScores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	f := testdb.MustSeed(t, h.DB, 1)
	s, _, err := db.EnsureSessionContext(ctx, h.DB, f.EventID)
	if err != nil {
		t.Fatal(err)
	}

	comment := "calm under pressure"
	var evID int64
	err = db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		ev, created, err := db.EnsureEvaluationContext(ctx, tx, s.ID, f.Users[0])
		if err != nil {
			return err
		}
		if !created || ev.Version != 1 {
			t.Errorf("new evaluation: created=%v version=%d", created, ev.Version)
		}
		evID = ev.ID
		if err := db.UpsertScoreContext(ctx, tx, ev, "triage", models.CriterionScore{Score: 7, Comment: &comment}); err != nil {
			return err
		}
		return db.UpsertScoreContext(ctx, tx, ev, "triage", models.CriterionScore{Score: 9})
	})
	if err != nil {
		t.Fatal(err)
	}

	ev, err := db.GetEvaluationContext(ctx, h.DB, evID)
	if err != nil {
		t.Fatal(err)
	}
	if ev.EventID != f.EventID {
		t.Fatalf("event id = %d, want %d", ev.EventID, f.EventID)
	}
	if got := ev.Scores["triage"]; got.Score != 9 || got.Comment != nil {
		t.Fatalf("score not overwritten: %+v", got)
	}
	if ev.Version != 3 {
		t.Fatalf("version = %d, want 3", ev.Version)
	}
}

func TestSettings_EventOverrideFallsBackToGlobal(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	f := testdb.MustSeed(t, h.DB, 0)

	if _, err := db.PutSettingsContext(ctx, h.DB, nil, models.AutomationSettings{AutoIssueWhenPassed: true}, &f.OperatorID); err != nil {
		t.Fatal(err)
	}
	got, err := db.GetSettingsContext(ctx, h.DB, &f.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scope != models.SettingsScopeGlobal || !got.AutoIssueWhenPassed {
		t.Fatalf("want global settings, got %+v", got)
	}

	if _, err := db.PutSettingsContext(ctx, h.DB, &f.EventID, models.AutomationSettings{RequireAttendance: true}, &f.OperatorID); err != nil {
		t.Fatal(err)
	}
	got, err = db.GetSettingsContext(ctx, h.DB, &f.EventID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Scope != db.SettingsScope(&f.EventID) || got.AutoIssueWhenPassed || !got.RequireAttendance {
		t.Fatalf("want event override, got %+v", got)
	}

	removed, err := db.DeleteEventSettingsContext(ctx, h.DB, f.EventID)
	if err != nil || !removed {
		t.Fatalf("delete override: removed=%v err=%v", removed, err)
	}
}
