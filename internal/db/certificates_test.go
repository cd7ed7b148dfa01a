//go:build testutil
// +build testutil

package db_test

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/db"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/Spok95/drillcert/internal/testutil/testdb"
	"github.com/google/uuid"
)

func mustTemplate(t *testing.T, database *sql.DB, operator int64) models.CertificateTemplate {
	t.Helper()
	tpl, err := db.CreateTemplateContext(context.Background(), database, models.CertificateTemplate{
		Name:              "Default",
		Content:           "<p>{name}</p>",
		BackgroundOpacity: 0.3,
		PaperSize:         models.PaperA4Landscape,
		NumberFormat:      "CERT-{YEAR}-{SEQ}",
		Status:            models.TemplateActive,
		CreatedBy:         &operator,
	})
	if err != nil {
		t.Fatalf("create template: %v", err)
	}
	return tpl
}

func newCert(f testdb.Fixture, tplID, userID int64, number string) *models.IssuedCertificate {
	return &models.IssuedCertificate{
		CertificateNumber: number,
		VerificationCode:  uuid.NewString(),
		Type:              models.CertificateCompletion,
		UserID:            userID,
		EventID:           f.EventID,
		TemplateID:        tplID,
		TrainingType:      "Flood response",
		Document:          "<p>doc</p>",
		ContentHash:       "hash",
		PaperSize:         models.PaperA4Landscape,
		IssuedAt:          time.Now().UTC(),
		IssuerID:          f.OperatorID,
	}
}

func insert(ctx context.Context, database *sql.DB, c *models.IssuedCertificate) error {
	return db.WithTx(ctx, database, func(tx *sql.Tx) error {
		return db.WithSavepoint(ctx, tx, "issue", func() error {
			return db.InsertCertificateContext(ctx, tx, c)
		})
	})
}

func TestInsertCertificate_OneActivePerTriple(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	f := testdb.MustSeed(t, h.DB, 1)
	tpl := mustTemplate(t, h.DB, f.OperatorID)
	user := f.Users[0]

	first := newCert(f, tpl.ID, user, "CERT-2025-0001")
	if err := insert(ctx, h.DB, first); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	err = insert(ctx, h.DB, newCert(f, tpl.ID, user, "CERT-2025-0002"))
	var dup *apperr.DuplicateCertificateError
	if !errors.As(err, &dup) {
		t.Fatalf("want DuplicateCertificateError, got %v", err)
	}

	// другой тип для той же пары разрешён
	part := newCert(f, tpl.ID, user, "CERT-2025-0003")
	part.Type = models.CertificateParticipation
	if err := insert(ctx, h.DB, part); err != nil {
		t.Fatalf("participation insert: %v", err)
	}

	reason := "typo in name"
	revoked, err := db.RevokeCertificateContext(ctx, h.DB, first.ID, f.OperatorID, &reason, time.Now())
	if err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if revoked.Status != models.CertificateRevoked || revoked.RevokedAt == nil {
		t.Fatalf("unexpected revoked row: %+v", revoked)
	}

	again := newCert(f, tpl.ID, user, "CERT-2025-0004")
	if err := insert(ctx, h.DB, again); err != nil {
		t.Fatalf("reissue after revoke: %v", err)
	}
	if again.ID == first.ID {
		t.Fatal("reissue must create a new record")
	}

	_, err = db.RevokeCertificateContext(ctx, h.DB, first.ID, f.OperatorID, nil, time.Now())
	var already *apperr.AlreadyRevokedError
	if !errors.As(err, &already) {
		t.Fatalf("want AlreadyRevokedError, got %v", err)
	}
}

func TestInsertCertificate_NumberTaken(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	f := testdb.MustSeed(t, h.DB, 2)
	tpl := mustTemplate(t, h.DB, f.OperatorID)

	if err := insert(ctx, h.DB, newCert(f, tpl.ID, f.Users[0], "CERT-2025-0001")); err != nil {
		t.Fatal(err)
	}
	err = insert(ctx, h.DB, newCert(f, tpl.ID, f.Users[1], "CERT-2025-0001"))
	if !errors.Is(err, db.ErrNumberTaken) {
		t.Fatalf("want ErrNumberTaken, got %v", err)
	}
}

func TestIssuedCertificates_NeverDeleted(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	f := testdb.MustSeed(t, h.DB, 1)
	tpl := mustTemplate(t, h.DB, f.OperatorID)
	c := newCert(f, tpl.ID, f.Users[0], "CERT-2025-0001")
	if err := insert(ctx, h.DB, c); err != nil {
		t.Fatal(err)
	}

	if _, err := h.DB.ExecContext(ctx, `DELETE FROM issued_certificates WHERE id = $1`, c.ID); err == nil {
		t.Fatal("delete must be rejected")
	}
	if _, err := h.DB.ExecContext(ctx, `UPDATE issued_certificates SET certificate_number = 'X' WHERE id = $1`, c.ID); err == nil {
		t.Fatal("renumbering must be rejected")
	}
}

func TestNextSequence_ConcurrentUnique(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	const n = 40
	var (
		mu  sync.Mutex
		got []int64
		wg  sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
				v, err := db.NextSequenceContext(ctx, tx, "CERT-2025-")
				if err != nil {
					return err
				}
				mu.Lock()
				got = append(got, v)
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if len(got) != n {
		t.Fatalf("got %d values, want %d", len(got), n)
	}
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	for i, v := range got {
		if v != int64(i+1) {
			t.Fatalf("sequence not dense/unique: %v", got)
		}
	}
}

func TestSequence_RolledBackWithTransaction(t *testing.T) {
	ctx := context.Background()
	h, err := testdb.Start(ctx)
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	boom := errors.New("boom")
	err = db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		if _, err := db.NextSequenceContext(ctx, tx, "S-"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("want boom, got %v", err)
	}
	var v int64
	_ = db.WithTx(ctx, h.DB, func(tx *sql.Tx) error {
		v, err = db.NextSequenceContext(ctx, tx, "S-")
		return err
	})
	if v != 1 {
		t.Fatalf("sequence after rollback = %d, want 1", v)
	}
}
