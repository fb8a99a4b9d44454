package planner

import "github.com/omnibrowser/redix-core/internal/domain"

// OptimizePlan удаляет шаги, недостижимые из корней, и пересчитывает
// оценки по усечённому набору. Возвращает новый Plan; вход не мутируется.
func (p *Planner) OptimizePlan(plan *domain.Plan, complexity domain.Complexity) *domain.Plan {
	unreachable := unreachableTasks(plan)
	if len(unreachable) == 0 {
		return plan.Clone()
	}

	dead := make(map[string]bool, len(unreachable))
	for _, id := range unreachable {
		dead[id] = true
	}

	optimized := plan.Clone()
	kept := make([]domain.Task, 0, len(optimized.Tasks))
	for i := range optimized.Tasks {
		if !dead[optimized.Tasks[i].ID] {
			kept = append(kept, optimized.Tasks[i])
		}
	}
	optimized.Tasks = kept

	optimized.EstimatedTimeSeconds, optimized.EstimatedCost = estimate(kept, complexity)

	p.logger.Debug("plan optimized",
		"plan_id", plan.ID,
		"pruned", len(unreachable),
		"remaining", len(kept),
	)

	return optimized
}
