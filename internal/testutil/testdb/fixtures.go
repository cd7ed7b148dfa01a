//go:build testutil
// +build testutil

package testdb

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Spok95/drillcert/internal/db"
)

// DefaultCriteria — каталог сценария по умолчанию для тестов.
var DefaultCriteria = []string{"triage", "communication", "safety"}

var telegramSeq atomic.Int64

// Fixture — минимальный набор внешних данных: сценарий, мероприятие, оператор, участники.
type Fixture struct {
	ScenarioID int64
	EventID    int64
	OperatorID int64
	Users      []int64
	Criteria   []string
}

// Seed создаёт сценарий с criteria (или DefaultCriteria), мероприятие, оператора и n участников.
func Seed(ctx context.Context, database *sql.DB, n int, criteria ...string) (Fixture, error) {
	if len(criteria) == 0 {
		criteria = DefaultCriteria
	}
	f := Fixture{Criteria: criteria}
	var err error
	if f.ScenarioID, err = db.CreateScenarioContext(ctx, database, "Flood response", criteria); err != nil {
		return Fixture{}, fmt.Errorf("scenario: %w", err)
	}
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	if f.EventID, err = db.CreateEventContext(ctx, database, "Flood drill", date, f.ScenarioID, nil); err != nil {
		return Fixture{}, fmt.Errorf("event: %w", err)
	}
	if f.OperatorID, err = db.CreateUserContext(ctx, database, "Operator", nil); err != nil {
		return Fixture{}, fmt.Errorf("operator: %w", err)
	}
	for i := 0; i < n; i++ {
		tg := 9000 + telegramSeq.Add(1)
		id, err := db.CreateUserContext(ctx, database, fmt.Sprintf("Participant %02d", i+1), &tg)
		if err != nil {
			return Fixture{}, fmt.Errorf("participant %d: %w", i, err)
		}
		f.Users = append(f.Users, id)
	}
	return f, nil
}

func MustSeed(t testing.TB, database *sql.DB, n int, criteria ...string) Fixture {
	t.Helper()
	f, err := Seed(context.Background(), database, n, criteria...)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return f
}
