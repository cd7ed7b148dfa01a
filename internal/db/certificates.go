package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
)

const (
	constraintOneActive = "issued_certificates_one_active"
	constraintNumber    = "issued_certificates_number_key"
)

// ErrNumberTaken — сгенерированный номер уже занят; вызывающий берёт следующий.
var ErrNumberTaken = errors.New("certificate number already taken")

const certificateColumns = `c.id, c.certificate_number, c.verification_code, c.type, c.user_id, c.event_id,
	c.template_id, c.participant_evaluation_id, c.training_type, c.score, c.document, c.content_hash,
	c.paper_size, c.auto_issued, c.issued_at, c.issuer_id, c.status, c.revoked_at, c.revoked_by, c.revoked_reason`

func certificateDest(c *models.IssuedCertificate, n *certNulls) []any {
	return []any{&c.ID, &c.CertificateNumber, &c.VerificationCode, &c.Type, &c.UserID, &c.EventID,
		&c.TemplateID, &n.evaluationID, &c.TrainingType, &n.score, &c.Document, &c.ContentHash,
		&c.PaperSize, &c.AutoIssued, &c.IssuedAt, &c.IssuerID, &c.Status, &n.revokedAt, &n.revokedBy, &n.reason}
}

type certNulls struct {
	evaluationID sql.NullInt64
	score        sql.NullFloat64
	revokedAt    sql.NullTime
	revokedBy    sql.NullInt64
	reason       sql.NullString
}

func (n certNulls) apply(c *models.IssuedCertificate) {
	c.ParticipantEvaluationID = int64Ptr(n.evaluationID)
	c.Score = float64Ptr(n.score)
	c.RevokedAt = timePtr(n.revokedAt)
	c.RevokedBy = int64Ptr(n.revokedBy)
	c.RevokedReason = stringPtr(n.reason)
}

func scanCertificate(row interface{ Scan(dest ...any) error }) (models.IssuedCertificate, error) {
	var (
		c models.IssuedCertificate
		n certNulls
	)
	if err := row.Scan(certificateDest(&c, &n)...); err != nil {
		return models.IssuedCertificate{}, err
	}
	n.apply(&c)
	return c, nil
}

// WithSavepoint выполняет fn внутри SAVEPOINT: при ошибке откатывается только fn,
// внешняя транзакция остаётся рабочей.
func WithSavepoint(ctx context.Context, tx *sql.Tx, name string, fn func() error) error {
	if _, err := tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return err
	}
	if err := fn(); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		return err
	}
	_, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}

// NextSequenceContext — следующее значение счётчика scope.
// Строка счётчика заблокирована до конца транзакции, откат транзакции откатывает и счётчик.
func NextSequenceContext(ctx context.Context, tx *sql.Tx, scope string) (int64, error) {
	var v int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO certificate_sequences (scope, last_value) VALUES ($1, 1)
		ON CONFLICT (scope) DO UPDATE
		SET last_value = certificate_sequences.last_value + 1, updated_at = now()
		RETURNING last_value
	`, scope).Scan(&v)
	return v, err
}

// InsertCertificateContext добавляет сертификат в реестр.
// Вызывать внутри WithSavepoint: нарушение уникальности прерывает текущую транзакцию.
// Действующий дубликат → *apperr.DuplicateCertificateError, занятый номер → ErrNumberTaken.
func InsertCertificateContext(ctx context.Context, tx *sql.Tx, c *models.IssuedCertificate) error {
	var score sql.NullFloat64
	if c.Score != nil {
		score = sql.NullFloat64{Float64: *c.Score, Valid: true}
	}
	err := tx.QueryRowContext(ctx, `
		INSERT INTO issued_certificates (certificate_number, verification_code, type, user_id, event_id,
			template_id, participant_evaluation_id, training_type, score, document, content_hash,
			paper_size, auto_issued, issued_at, issuer_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, 'active')
		RETURNING id
	`, c.CertificateNumber, c.VerificationCode, string(c.Type), c.UserID, c.EventID,
		c.TemplateID, nullInt64(c.ParticipantEvaluationID), c.TrainingType, score, c.Document, c.ContentHash,
		string(c.PaperSize), c.AutoIssued, c.IssuedAt, c.IssuerID).Scan(&c.ID)
	if err == nil {
		c.Status = models.CertificateActive
		return nil
	}
	constraint, ok := uniqueViolation(err)
	if !ok {
		return err
	}
	switch constraint {
	case constraintNumber:
		return ErrNumberTaken
	case constraintOneActive:
		return &apperr.DuplicateCertificateError{UserID: c.UserID, EventID: c.EventID, Type: string(c.Type)}
	default:
		return err
	}
}

// GetActiveCertificateContext — действующий сертификат тройки; nil, если нет.
func GetActiveCertificateContext(ctx context.Context, q Querier, userID, eventID int64, typ models.CertificateType) (*models.IssuedCertificate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	c, err := scanCertificate(q.QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM issued_certificates c
		WHERE c.user_id = $1 AND c.event_id = $2 AND c.type = $3 AND c.status = 'active'
	`, userID, eventID, string(typ)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// AnyActiveCertificateContext — действующий сертификат участника за мероприятие любого типа.
func AnyActiveCertificateContext(ctx context.Context, q Querier, userID, eventID int64) (*models.IssuedCertificate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	c, err := scanCertificate(q.QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM issued_certificates c
		WHERE c.user_id = $1 AND c.event_id = $2 AND c.status = 'active'
		ORDER BY c.issued_at, c.id
		LIMIT 1
	`, userID, eventID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ActiveCertificatesByEventContext — действующие сертификаты мероприятия по user_id (самый ранний).
func ActiveCertificatesByEventContext(ctx context.Context, q Querier, eventID int64) (map[int64]models.IssuedCertificate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := q.QueryContext(ctx, `
		SELECT `+certificateColumns+` FROM issued_certificates c
		WHERE c.event_id = $1 AND c.status = 'active'
		ORDER BY c.issued_at, c.id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make(map[int64]models.IssuedCertificate)
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, err
		}
		if _, seen := out[c.UserID]; !seen {
			out[c.UserID] = c
		}
	}
	return out, rows.Err()
}

func GetCertificateContext(ctx context.Context, q Querier, id int64) (models.IssuedCertificate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	c, err := scanCertificate(q.QueryRowContext(ctx, `SELECT `+certificateColumns+` FROM issued_certificates c WHERE c.id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.IssuedCertificate{}, apperr.NotFound("certificate", id)
	}
	return c, err
}

// FindCertificateContext ищет по номеру или коду проверки.
func FindCertificateContext(ctx context.Context, q Querier, numberOrCode string) (models.IssuedCertificate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	c, err := scanCertificate(q.QueryRowContext(ctx, `
		SELECT `+certificateColumns+` FROM issued_certificates c
		WHERE c.certificate_number = $1 OR c.verification_code::text = lower($1)
		LIMIT 1
	`, numberOrCode))
	if errors.Is(err, sql.ErrNoRows) {
		return models.IssuedCertificate{}, &apperr.NotFoundError{Entity: "certificate", ID: numberOrCode}
	}
	return c, err
}

// RevokeCertificateContext — атомарный переход active → revoked.
func RevokeCertificateContext(ctx context.Context, q Querier, id, by int64, reason *string, now time.Time) (models.IssuedCertificate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	c, err := scanCertificate(q.QueryRowContext(ctx, `
		UPDATE issued_certificates c
		SET status = 'revoked', revoked_at = $1, revoked_by = $2, revoked_reason = $3
		WHERE c.id = $4 AND c.status = 'active'
		RETURNING `+certificateColumns, now, by, nullString(reason), id))
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.IssuedCertificate{}, err
	}
	existing, err := GetCertificateContext(ctx, q, id)
	if err != nil {
		return models.IssuedCertificate{}, err
	}
	return models.IssuedCertificate{}, &apperr.AlreadyRevokedError{CertificateID: id, RevokedAt: existing.RevokedAt}
}

// ListCertificatesContext — история выдачи с фильтрами, новые сверху. Документ не читается.
func ListCertificatesContext(ctx context.Context, q Querier, f models.CertificateFilter) ([]models.CertificateHistoryRow, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT ` + certificateColumns + `, u.name, e.title
		FROM issued_certificates c
		JOIN users u ON u.id = c.user_id
		JOIN events e ON e.id = c.event_id
		WHERE 1=1`
	var args []any
	idx := 1
	if f.EventID != nil {
		query += fmt.Sprintf(" AND c.event_id = $%d", idx)
		args = append(args, *f.EventID)
		idx++
	}
	if f.NumberSubstr != "" {
		query += fmt.Sprintf(" AND c.certificate_number ILIKE '%%' || $%d || '%%'", idx)
		args = append(args, f.NumberSubstr)
		idx++
	}
	if f.From != nil {
		query += fmt.Sprintf(" AND c.issued_at >= $%d", idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		query += fmt.Sprintf(" AND c.issued_at < $%d", idx)
		args = append(args, *f.To)
		idx++
	}
	if f.Status != nil {
		query += fmt.Sprintf(" AND c.status = $%d", idx)
		args = append(args, string(*f.Status))
		idx++
	}
	query += " ORDER BY c.issued_at DESC, c.id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", idx)
		args = append(args, f.Limit)
		idx++
	}
	if f.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", idx)
		args = append(args, f.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.CertificateHistoryRow
	for rows.Next() {
		var (
			r models.CertificateHistoryRow
			n certNulls
		)
		dest := append(certificateDest(&r.IssuedCertificate, &n), &r.UserName, &r.EventTitle)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		n.apply(&r.IssuedCertificate)
		r.Document = ""
		out = append(out, r)
	}
	return out, rows.Err()
}

// InsertDiagnosticsContext сохраняет замечания рендера к выдаче.
func InsertDiagnosticsContext(ctx context.Context, q Querier, diags []models.RenderDiagnostic) error {
	if len(diags) == 0 {
		return nil
	}
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	for _, d := range diags {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO render_diagnostics (certificate_id, template_id, kind, "offset", detail)
			VALUES ($1, $2, $3, $4, $5)
		`, nullInt64(d.CertificateID), d.TemplateID, d.Kind, d.Offset, d.Detail); err != nil {
			return err
		}
	}
	return nil
}

func ListDiagnosticsContext(ctx context.Context, q Querier, certificateID int64) ([]models.RenderDiagnostic, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := q.QueryContext(ctx, `
		SELECT id, certificate_id, template_id, kind, "offset", detail, created_at
		FROM render_diagnostics
		WHERE certificate_id = $1
		ORDER BY id
	`, certificateID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.RenderDiagnostic
	for rows.Next() {
		var (
			d    models.RenderDiagnostic
			cert sql.NullInt64
		)
		if err := rows.Scan(&d.ID, &cert, &d.TemplateID, &d.Kind, &d.Offset, &d.Detail, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.CertificateID = int64Ptr(cert)
		out = append(out, d)
	}
	return out, rows.Err()
}
