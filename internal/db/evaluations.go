package db

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
	"github.com/lib/pq"
)

const evaluationSelect = `
	SELECT pe.id, pe.session_id, s.event_id, pe.user_id, pe.status, pe.overall_feedback,
	       pe.total_score, pe.max_score, pe.percentage, pe.result,
	       pe.approved_by, pe.approved_at, pe.submitted_by, pe.submitted_at,
	       pe.version, pe.created_at, pe.updated_at
	FROM participant_evaluations pe
	JOIN scoring_sessions s ON s.id = pe.session_id
`

func scanEvaluation(row interface{ Scan(dest ...any) error }) (models.ParticipantEvaluation, error) {
	var (
		ev          models.ParticipantEvaluation
		feedback    sql.NullString
		result      sql.NullString
		approvedBy  sql.NullInt64
		approvedAt  sql.NullTime
		submittedBy sql.NullInt64
		submittedAt sql.NullTime
	)
	if err := row.Scan(&ev.ID, &ev.SessionID, &ev.EventID, &ev.UserID, &ev.Status, &feedback,
		&ev.TotalScore, &ev.MaxScore, &ev.Percentage, &result,
		&approvedBy, &approvedAt, &submittedBy, &submittedAt,
		&ev.Version, &ev.CreatedAt, &ev.UpdatedAt); err != nil {
		return models.ParticipantEvaluation{}, err
	}
	ev.OverallFeedback = stringPtr(feedback)
	if result.Valid {
		r := models.Result(result.String)
		ev.Result = &r
	}
	ev.ApprovedBy = int64Ptr(approvedBy)
	ev.ApprovedAt = timePtr(approvedAt)
	ev.SubmittedBy = int64Ptr(submittedBy)
	ev.SubmittedAt = timePtr(submittedAt)
	ev.Scores = map[string]models.CriterionScore{}
	return ev, nil
}

// GetEvaluationContext — лист по id вместе с оценками.
func GetEvaluationContext(ctx context.Context, q Querier, evaluationID int64) (models.ParticipantEvaluation, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	ev, err := scanEvaluation(q.QueryRowContext(ctx, evaluationSelect+` WHERE pe.id = $1`, evaluationID))
	if errors.Is(err, sql.ErrNoRows) {
		return models.ParticipantEvaluation{}, apperr.NotFound("participant_evaluation", evaluationID)
	}
	if err != nil {
		return models.ParticipantEvaluation{}, err
	}
	if err := loadScores(ctx, q, []*models.ParticipantEvaluation{&ev}); err != nil {
		return models.ParticipantEvaluation{}, err
	}
	return ev, nil
}

// FindEvaluationContext — лист участника в сессии; nil, если листа ещё нет.
func FindEvaluationContext(ctx context.Context, q Querier, sessionID, userID int64) (*models.ParticipantEvaluation, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	ev, err := scanEvaluation(q.QueryRowContext(ctx, evaluationSelect+` WHERE pe.session_id = $1 AND pe.user_id = $2`, sessionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := loadScores(ctx, q, []*models.ParticipantEvaluation{&ev}); err != nil {
		return nil, err
	}
	return &ev, nil
}

// LockEvaluationContext читает лист под FOR UPDATE: запись в один лист последовательна.
func LockEvaluationContext(ctx context.Context, tx *sql.Tx, sessionID, userID int64) (*models.ParticipantEvaluation, error) {
	ev, err := scanEvaluation(tx.QueryRowContext(ctx,
		evaluationSelect+` WHERE pe.session_id = $1 AND pe.user_id = $2 FOR UPDATE OF pe`, sessionID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := loadScores(ctx, tx, []*models.ParticipantEvaluation{&ev}); err != nil {
		return nil, err
	}
	return &ev, nil
}

// EnsureEvaluationContext создаёт черновик листа, если его нет. created=true — лист новый.
func EnsureEvaluationContext(ctx context.Context, tx *sql.Tx, sessionID, userID int64) (*models.ParticipantEvaluation, bool, error) {
	res, err := tx.ExecContext(ctx, `
		INSERT INTO participant_evaluations (session_id, user_id) VALUES ($1, $2)
		ON CONFLICT (session_id, user_id) DO NOTHING
	`, sessionID, userID)
	if err != nil {
		return nil, false, err
	}
	n, _ := res.RowsAffected()
	ev, err := LockEvaluationContext(ctx, tx, sessionID, userID)
	if err != nil {
		return nil, false, err
	}
	if ev == nil {
		return nil, false, errors.New("evaluation vanished after insert")
	}
	return ev, n == 1, nil
}

// ListEvaluationsContext — все листы сессии с оценками, по возрастанию id.
func ListEvaluationsContext(ctx context.Context, q Querier, sessionID int64) ([]models.ParticipantEvaluation, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := q.QueryContext(ctx, evaluationSelect+` WHERE pe.session_id = $1 ORDER BY pe.id`, sessionID)
	if err != nil {
		return nil, err
	}
	var out []models.ParticipantEvaluation
	for rows.Next() {
		ev, err := scanEvaluation(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	ptrs := make([]*models.ParticipantEvaluation, len(out))
	for i := range out {
		ptrs[i] = &out[i]
	}
	if err := loadScores(ctx, q, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func loadScores(ctx context.Context, q Querier, evs []*models.ParticipantEvaluation) error {
	if len(evs) == 0 {
		return nil
	}
	byID := make(map[int64]*models.ParticipantEvaluation, len(evs))
	ids := make([]int64, 0, len(evs))
	for _, ev := range evs {
		byID[ev.ID] = ev
		ids = append(ids, ev.ID)
	}

	rows, err := q.QueryContext(ctx, `
		SELECT evaluation_id, criterion_name, score, comment
		FROM evaluation_scores
		WHERE evaluation_id = ANY($1)
	`, pq.Array(ids))
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			evID    int64
			name    string
			sc      models.CriterionScore
			comment sql.NullString
		)
		if err := rows.Scan(&evID, &name, &sc.Score, &comment); err != nil {
			return err
		}
		sc.Comment = stringPtr(comment)
		if ev, ok := byID[evID]; ok {
			ev.Scores[name] = sc
		}
	}
	return rows.Err()
}

// UpsertScoreContext пишет оценку по критерию и поднимает версию листа.
func UpsertScoreContext(ctx context.Context, tx *sql.Tx, ev *models.ParticipantEvaluation, criterion string, sc models.CriterionScore) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO evaluation_scores (evaluation_id, criterion_name, score, comment)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (evaluation_id, criterion_name)
		DO UPDATE SET score = EXCLUDED.score, comment = EXCLUDED.comment, updated_at = now()
	`, ev.ID, criterion, sc.Score, nullString(sc.Comment)); err != nil {
		return err
	}
	if err := bumpVersion(ctx, tx, ev); err != nil {
		return err
	}
	ev.Scores[criterion] = sc
	return nil
}

// SetFeedbackContext — общий комментарий к листу.
func SetFeedbackContext(ctx context.Context, tx *sql.Tx, ev *models.ParticipantEvaluation, feedback *string) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE participant_evaluations SET overall_feedback = $1 WHERE id = $2
	`, nullString(feedback), ev.ID); err != nil {
		return err
	}
	if err := bumpVersion(ctx, tx, ev); err != nil {
		return err
	}
	ev.OverallFeedback = feedback
	return nil
}

// SaveSubmissionContext записывает агрегаты и статус submitted.
func SaveSubmissionContext(ctx context.Context, tx *sql.Tx, ev *models.ParticipantEvaluation) error {
	var result sql.NullString
	if ev.Result != nil {
		result = sql.NullString{String: string(*ev.Result), Valid: true}
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE participant_evaluations
		SET status = $1, total_score = $2, max_score = $3, percentage = $4, result = $5,
		    submitted_by = $6, submitted_at = $7
		WHERE id = $8
	`, string(ev.Status), ev.TotalScore, ev.MaxScore, ev.Percentage, result,
		nullInt64(ev.SubmittedBy), nullTime(ev.SubmittedAt), ev.ID); err != nil {
		return err
	}
	return bumpVersion(ctx, tx, ev)
}

// SaveApprovalContext — отметка руководителя.
func SaveApprovalContext(ctx context.Context, tx *sql.Tx, ev *models.ParticipantEvaluation) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE participant_evaluations SET approved_by = $1, approved_at = $2 WHERE id = $3
	`, nullInt64(ev.ApprovedBy), nullTime(ev.ApprovedAt), ev.ID); err != nil {
		return err
	}
	return bumpVersion(ctx, tx, ev)
}

func bumpVersion(ctx context.Context, tx *sql.Tx, ev *models.ParticipantEvaluation) error {
	return tx.QueryRowContext(ctx, `
		UPDATE participant_evaluations SET version = version + 1, updated_at = now()
		WHERE id = $1
		RETURNING version, updated_at
	`, ev.ID).Scan(&ev.Version, &ev.UpdatedAt)
}
