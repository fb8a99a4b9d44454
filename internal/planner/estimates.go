package planner

import "github.com/omnibrowser/redix-core/internal/domain"

// Базовые оценки времени выполнения шага в секундах.
// Масштабируются множителем сложности (simple=1.0, medium=1.5, complex=2.0).
var baseTimeSeconds = map[domain.TaskType]float64{
	domain.TaskTypeSearch:     3,
	domain.TaskTypeFetch:      2,
	domain.TaskTypeExtract:    2,
	domain.TaskTypeSummarize:  8,
	domain.TaskTypeAnalyze:    10,
	domain.TaskTypeSynthesize: 12,
	domain.TaskTypeFormat:     1,
}

// Базовые оценки стоимости шага.
// search/fetch/extract считаются в request units,
// summarize/analyze/synthesize/format — в token units.
var baseCostUnits = map[domain.TaskType]float64{
	domain.TaskTypeSearch:     1,
	domain.TaskTypeFetch:      1,
	domain.TaskTypeExtract:    0.5,
	domain.TaskTypeSummarize:  800,
	domain.TaskTypeAnalyze:    1200,
	domain.TaskTypeSynthesize: 1500,
	domain.TaskTypeFormat:     100,
}

// Оценка для незнакомого типа шага (plugin-расширение).
const (
	unknownTypeTimeSeconds = 5
	unknownTypeCostUnits   = 500
)

// estimate считает суммарные оценки времени и стоимости для набора tasks.
func estimate(tasks []domain.Task, complexity domain.Complexity) (timeSeconds, cost float64) {
	multiplier := complexity.Multiplier()

	for i := range tasks {
		t, ok := baseTimeSeconds[tasks[i].Type]
		if !ok {
			t = unknownTypeTimeSeconds
		}
		c, ok := baseCostUnits[tasks[i].Type]
		if !ok {
			c = unknownTypeCostUnits
		}
		timeSeconds += t * multiplier
		cost += c
	}
	return timeSeconds, cost
}
