package models

import "time"

// MaxCriterionScore — верхняя граница оценки по одному критерию.
const MaxCriterionScore = 10

// Criterion — именованное измерение оценки сценария. На него ссылаются по имени, не по id.
type Criterion struct {
	Name     string `db:"name" json:"name"`
	MaxScore int    `db:"max_score" json:"max_score"`
}

type Scenario struct {
	ID       int64       `db:"id" json:"id"`
	Title    string      `db:"title" json:"title"`
	Criteria []Criterion `json:"criteria"`
}

// CriterionNames возвращает имена критериев в порядке каталога.
func (s Scenario) CriterionNames() []string {
	out := make([]string, 0, len(s.Criteria))
	for _, c := range s.Criteria {
		out = append(out, c.Name)
	}
	return out
}

// HasCriterion — есть ли критерий в каталоге сценария.
func (s Scenario) HasCriterion(name string) bool {
	for _, c := range s.Criteria {
		if c.Name == name {
			return true
		}
	}
	return false
}

// Event — учебное мероприятие (симуляция), к которому привязана сессия оценки.
type Event struct {
	ID           int64     `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	EventDate    time.Time `db:"event_date" json:"event_date"`
	TrainingType *string   `db:"training_type" json:"training_type,omitempty"`
	Scenario     Scenario  `json:"scenario"`
}

// DefaultTrainingType — тип подготовки для сертификата: из мероприятия, иначе название сценария.
func (e Event) DefaultTrainingType() string {
	if e.TrainingType != nil && *e.TrainingType != "" {
		return *e.TrainingType
	}
	return e.Scenario.Title
}
