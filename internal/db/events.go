package db

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/ctxutil"
	"github.com/Spok95/drillcert/internal/models"
)

// GetEventContext — мероприятие вместе со сценарием и каталогом критериев.
func GetEventContext(ctx context.Context, q Querier, eventID int64) (models.Event, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var (
		e  models.Event
		tt sql.NullString
	)
	err := q.QueryRowContext(ctx, `
		SELECT e.id, e.title, e.event_date, e.training_type, s.id, s.title
		FROM events e
		JOIN scenarios s ON s.id = e.scenario_id
		WHERE e.id = $1
	`, eventID).Scan(&e.ID, &e.Title, &e.EventDate, &tt, &e.Scenario.ID, &e.Scenario.Title)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Event{}, apperr.NotFound("event", eventID)
	}
	if err != nil {
		return models.Event{}, err
	}
	e.TrainingType = stringPtr(tt)

	criteria, err := listCriteria(ctx, q, e.Scenario.ID)
	if err != nil {
		return models.Event{}, err
	}
	e.Scenario.Criteria = criteria
	return e, nil
}

func listCriteria(ctx context.Context, q Querier, scenarioID int64) ([]models.Criterion, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT name, max_score FROM scenario_criteria
		WHERE scenario_id = $1
		ORDER BY position
	`, scenarioID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []models.Criterion
	for rows.Next() {
		var c models.Criterion
		if err := rows.Scan(&c.Name, &c.MaxScore); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateScenarioContext — сценарий с критериями в указанном порядке. Для сидов и тестов.
func CreateScenarioContext(ctx context.Context, database *sql.DB, title string, criteria []string) (int64, error) {
	var id int64
	err := WithTx(ctx, database, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `INSERT INTO scenarios (title) VALUES ($1) RETURNING id`, title).Scan(&id); err != nil {
			return err
		}
		for i, name := range criteria {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO scenario_criteria (scenario_id, position, name, max_score)
				VALUES ($1, $2, $3, $4)
			`, id, i, name, models.MaxCriterionScore); err != nil {
				return err
			}
		}
		return nil
	})
	return id, err
}

// CreateEventContext — для сидов и тестов.
func CreateEventContext(ctx context.Context, q Querier, title string, date time.Time, scenarioID int64, trainingType *string) (int64, error) {
	ctx, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	var id int64
	err := q.QueryRowContext(ctx, `
		INSERT INTO events (title, event_date, scenario_id, training_type)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, title, date, scenarioID, nullString(trainingType)).Scan(&id)
	return id, err
}
