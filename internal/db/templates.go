package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
)

const templateColumns = `id, name, content, background, background_opacity, paper_size,
	number_format, status, created_by, created_at, updated_at`

func scanTemplate(row interface{ Scan(dest ...any) error }) (models.CertificateTemplate, error) {
	var (
		t         models.CertificateTemplate
		createdBy sql.NullInt64
	)
	if err := row.Scan(&t.ID, &t.Name, &t.Content, &t.Background, &t.BackgroundOpacity, &t.PaperSize,
		&t.NumberFormat, &t.Status, &createdBy, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return models.CertificateTemplate{}, err
	}
	t.CreatedBy = int64Ptr(createdBy)
	return t, nil
}

// CreateTemplateContext — значения уже провалидированы вызывающим.
func CreateTemplateContext(ctx context.Context, q Querier, t models.CertificateTemplate) (models.CertificateTemplate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var bg any
	if len(t.Background) > 0 {
		bg = t.Background
	}
	return scanTemplate(q.QueryRowContext(ctx, `
		INSERT INTO certificate_templates (name, content, background, background_opacity, paper_size,
		                                   number_format, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+templateColumns,
		t.Name, t.Content, bg, t.BackgroundOpacity, string(t.PaperSize),
		t.NumberFormat, string(t.Status), nullInt64(t.CreatedBy)))
}

func GetTemplateContext(ctx context.Context, q Querier, id int64) (models.CertificateTemplate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	t, err := scanTemplate(q.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM certificate_templates WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.CertificateTemplate{}, apperr.NotFound("certificate_template", id)
	}
	return t, err
}

// LatestActiveTemplateContext — самый новый активный шаблон; nil, если активных нет.
func LatestActiveTemplateContext(ctx context.Context, q Querier) (*models.CertificateTemplate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	t, err := scanTemplate(q.QueryRowContext(ctx, `
		SELECT `+templateColumns+` FROM certificate_templates
		WHERE status = 'active'
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ListTemplatesContext — без фона, чтобы не тянуть картинки в список.
func ListTemplatesContext(ctx context.Context, q Querier, status *models.TemplateStatus) ([]models.CertificateTemplate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	query := `
		SELECT id, name, content, NULL::bytea, background_opacity, paper_size,
		       number_format, status, created_by, created_at, updated_at
		FROM certificate_templates`
	var args []any
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, string(*status))
	}
	query += ` ORDER BY id`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.CertificateTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SetTemplateStatusContext — активация/деактивация.
func SetTemplateStatusContext(ctx context.Context, q Querier, id int64, status models.TemplateStatus) (models.CertificateTemplate, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	t, err := scanTemplate(q.QueryRowContext(ctx, `
		UPDATE certificate_templates SET status = $1, updated_at = now()
		WHERE id = $2
		RETURNING `+templateColumns, string(status), id))
	if errors.Is(err, sql.ErrNoRows) {
		return models.CertificateTemplate{}, apperr.NotFound("certificate_template", id)
	}
	return t, err
}
