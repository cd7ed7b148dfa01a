package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
)

// StatsWindows — начало суток, текущей и прошлой недели (с понедельника) в loc.
func StatsWindows(now time.Time, loc *time.Location) (dayStart, weekStart, lastWeekStart time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	dayStart = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	offset := (int(dayStart.Weekday()) + 6) % 7
	weekStart = dayStart.AddDate(0, 0, -offset)
	lastWeekStart = weekStart.AddDate(0, 0, -7)
	return dayStart, weekStart, lastWeekStart
}

// WeekTrend — изменение к прошлой неделе в процентах. С нуля любой рост считается за 100%.
func WeekTrend(thisWeek, lastWeek int) float64 {
	if lastWeek == 0 {
		if thisWeek == 0 {
			return 0
		}
		return 100
	}
	return float64(thisWeek-lastWeek) * 100 / float64(lastWeek)
}

// CertificateStatsContext — сводка реестра.
// pending — отправленные и сданные листы без действующего сертификата.
func CertificateStatsContext(ctx context.Context, q Querier, now time.Time, loc *time.Location) (models.CertificateStats, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	dayStart, weekStart, lastWeekStart := StatsWindows(now, loc)

	var st models.CertificateStats
	if err := q.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'active'),
			count(*) FILTER (WHERE issued_at >= $1),
			count(*) FILTER (WHERE issued_at >= $2),
			count(*) FILTER (WHERE issued_at >= $3 AND issued_at < $2)
		FROM issued_certificates
	`, dayStart, weekStart, lastWeekStart).Scan(&st.TotalCertified, &st.IssuedToday, &st.IssuedThisWeek, &st.IssuedLastWeek); err != nil {
		return models.CertificateStats{}, err
	}
	if err := q.QueryRowContext(ctx, `
		SELECT count(*)
		FROM participant_evaluations pe
		JOIN scoring_sessions s ON s.id = pe.session_id
		WHERE pe.status = 'submitted' AND pe.result = 'passed'
		  AND NOT EXISTS (
			SELECT 1 FROM issued_certificates c
			WHERE c.user_id = pe.user_id AND c.event_id = s.event_id AND c.status = 'active'
		  )
	`).Scan(&st.PendingCertifications); err != nil {
		return models.CertificateStats{}, err
	}
	st.TrendThisWeek = WeekTrend(st.IssuedThisWeek, st.IssuedLastWeek)
	return st, nil
}

// SessionSummaryContext — агрегаты по отправленным листам. Критерии в порядке каталога.
func SessionSummaryContext(ctx context.Context, q Querier, session models.ScoringSession) (models.SessionSummary, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	sum := models.SessionSummary{SessionID: session.ID, EventID: session.EventID, Status: session.Status}
	if err := q.QueryRowContext(ctx, `SELECT title FROM events WHERE id = $1`, session.EventID).Scan(&sum.EventTitle); err != nil {
		return models.SessionSummary{}, err
	}

	rows, err := q.QueryContext(ctx, `
		SELECT sc.name, COALESCE(AVG(es.score), 0)::float8, count(es.score)
		FROM scoring_sessions s
		JOIN events e ON e.id = s.event_id
		JOIN scenario_criteria sc ON sc.scenario_id = e.scenario_id
		LEFT JOIN participant_evaluations pe ON pe.session_id = s.id AND pe.status = 'submitted'
		LEFT JOIN evaluation_scores es ON es.evaluation_id = pe.id AND es.criterion_name = sc.name
		WHERE s.id = $1
		GROUP BY sc.name, sc.position
		ORDER BY sc.position
	`, session.ID)
	if err != nil {
		return models.SessionSummary{}, err
	}
	for rows.Next() {
		var a models.CriterionAverage
		if err := rows.Scan(&a.Criterion, &a.Average, &a.Count); err != nil {
			_ = rows.Close()
			return models.SessionSummary{}, err
		}
		sum.PerCriterionAverage = append(sum.PerCriterionAverage, a)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return models.SessionSummary{}, err
	}
	_ = rows.Close()

	if err := q.QueryRowContext(ctx, `
		SELECT
			count(*) FILTER (WHERE status = 'submitted'),
			count(*) FILTER (WHERE status = 'submitted' AND result = 'passed'),
			count(*) FILTER (WHERE status = 'submitted' AND result = 'failed'),
			COALESCE(AVG(percentage) FILTER (WHERE status = 'submitted'), 0)::float8
		FROM participant_evaluations
		WHERE session_id = $1
	`, session.ID).Scan(&sum.SubmittedCount, &sum.PassedCount, &sum.FailedCount, &sum.OverallAverage); err != nil {
		return models.SessionSummary{}, err
	}

	if err := q.QueryRowContext(ctx, `
		SELECT count(*) FROM (
			SELECT user_id FROM participant_evaluations WHERE session_id = $1
			UNION
			SELECT user_id FROM attendance WHERE event_id = $2
		) roster
	`, session.ID, session.EventID).Scan(&sum.TotalParticipants); err != nil {
		return models.SessionSummary{}, err
	}
	return sum, nil
}

// EventRosterContext — участники мероприятия: отмеченные в посещаемости и все, у кого есть лист.
func EventRosterContext(ctx context.Context, q Querier, eventID int64) ([]models.User, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	rows, err := q.QueryContext(ctx, `
		SELECT u.id, u.name, u.telegram_id
		FROM users u
		WHERE u.id IN (
			SELECT a.user_id FROM attendance a WHERE a.event_id = $1
			UNION
			SELECT pe.user_id FROM participant_evaluations pe
			JOIN scoring_sessions s ON s.id = pe.session_id
			WHERE s.event_id = $1
		)
		ORDER BY u.name, u.id
	`, eventID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.User
	for rows.Next() {
		var (
			u  models.User
			tg sql.NullInt64
		)
		if err := rows.Scan(&u.ID, &u.Name, &tg); err != nil {
			return nil, err
		}
		u.TelegramID = int64Ptr(tg)
		out = append(out, u)
	}
	return out, rows.Err()
}
