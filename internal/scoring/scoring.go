// Package scoring содержит чистую логику оценки: проверку баллов, агрегаты листа
// и машину состояний сессии оценки.
package scoring

import (
	"github.com/Spok95/drillcert/internal/apperr"
	"github.com/Spok95/drillcert/internal/models"
)

// PassThresholdPercent — порог зачёта, включительно.
const PassThresholdPercent = 70

// Totals — агрегаты отправленного листа.
type Totals struct {
	Total      int
	Max        int
	Percentage float64
	Result     models.Result
}

// ValidateScore проверяет одну оценку против каталога критериев сценария.
func ValidateScore(scenario models.Scenario, criterion string, score int) error {
	if !scenario.HasCriterion(criterion) {
		return &apperr.InvalidScoreError{Criterion: criterion, Score: score, Reason: "criterion is not in the scenario catalog"}
	}
	if score < 0 || score > models.MaxCriterionScore {
		return &apperr.InvalidScoreError{Criterion: criterion, Score: score, Reason: "score must be within [0, 10]"}
	}
	return nil
}

// MissingCriteria возвращает критерии каталога без оценки, в порядке каталога.
func MissingCriteria(scenario models.Scenario, scores map[string]models.CriterionScore) []string {
	var missing []string
	for _, c := range scenario.Criteria {
		if _, ok := scores[c.Name]; !ok {
			missing = append(missing, c.Name)
		}
	}
	return missing
}

// Aggregate считает сумму, максимум, процент и результат.
// Учитываются только критерии каталога; зачёт сравнивается в целых числах,
// чтобы 14 из 20 давало ровно 70%.
func Aggregate(scenario models.Scenario, scores map[string]models.CriterionScore) Totals {
	t := Totals{Max: len(scenario.Criteria) * models.MaxCriterionScore}
	for _, c := range scenario.Criteria {
		if s, ok := scores[c.Name]; ok {
			t.Total += s.Score
		}
	}
	if t.Max > 0 {
		t.Percentage = float64(t.Total*100) / float64(t.Max)
	}
	t.Result = models.ResultFailed
	if t.Max > 0 && t.Total*100 >= PassThresholdPercent*t.Max {
		t.Result = models.ResultPassed
	}
	return t
}

// Finalize проверяет полноту листа и возвращает агрегаты для отправки.
func Finalize(scenario models.Scenario, scores map[string]models.CriterionScore) (Totals, error) {
	if missing := MissingCriteria(scenario, scores); len(missing) > 0 {
		return Totals{}, &apperr.IncompleteScoresError{Missing: missing}
	}
	return Aggregate(scenario, scores), nil
}

// Apply записывает агрегаты в лист и переводит его в submitted.
// Повторная отправка пересчитывает агрегаты, статус не меняется.
func Apply(ev *models.ParticipantEvaluation, t Totals) {
	ev.TotalScore = t.Total
	ev.MaxScore = t.Max
	ev.Percentage = t.Percentage
	r := t.Result
	ev.Result = &r
	ev.Status = models.EvaluationSubmitted
}
