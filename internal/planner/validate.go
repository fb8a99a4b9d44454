package planner

import (
	"fmt"

	"github.com/omnibrowser/redix-core/internal/domain"
)

// ValidationResult — результат проверки плана.
type ValidationResult struct {
	// Valid — план пригоден к выполнению (ошибок нет).
	Valid bool `json:"valid"`

	// Errors — нарушения, блокирующие выполнение.
	Errors []string `json:"errors,omitempty"`

	// Warnings — подозрительные, но не блокирующие свойства плана.
	Warnings []string `json:"warnings,omitempty"`
}

// ValidatePlan проверяет структурную корректность плана.
//
// Ошибки: зависимость от несуществующего шага, зависимость от самого
// себя, отсутствие корневых шагов. Warnings: шаги, недостижимые из
// корней, и превышение порогов времени/стоимости. План не мутируется.
func (p *Planner) ValidatePlan(plan *domain.Plan) ValidationResult {
	result := ValidationResult{Valid: true}

	ids := make(map[string]bool, len(plan.Tasks))
	for i := range plan.Tasks {
		ids[plan.Tasks[i].ID] = true
	}

	roots := 0
	for i := range plan.Tasks {
		task := &plan.Tasks[i]

		if task.IsRoot() {
			roots++
		}
		if task.DependsOnSelf() {
			result.Errors = append(result.Errors,
				fmt.Sprintf("task %q depends on itself", task.ID))
		}
		for _, dep := range task.Dependencies {
			if !ids[dep] {
				result.Errors = append(result.Errors,
					fmt.Sprintf("task %q depends on unknown task %q", task.ID, dep))
			}
		}
	}

	if len(plan.Tasks) > 0 && roots == 0 {
		result.Errors = append(result.Errors, "plan has no root tasks (no entry point)")
	}
	if len(plan.Tasks) == 0 {
		result.Errors = append(result.Errors, "plan has no tasks")
	}

	for _, id := range unreachableTasks(plan) {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("task %q is unreachable from any root task", id))
	}

	if plan.EstimatedTimeSeconds > p.cfg.TimeWarnThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("estimated time %.0fs exceeds threshold %.0fs",
				plan.EstimatedTimeSeconds, p.cfg.TimeWarnThreshold))
	}
	if plan.EstimatedCost > p.cfg.CostWarnThreshold {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("estimated cost %.0f exceeds threshold %.0f",
				plan.EstimatedCost, p.cfg.CostWarnThreshold))
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// unreachableTasks возвращает ID шагов, недостижимых прямым обходом
// графа зависимостей от корневых шагов.
func unreachableTasks(plan *domain.Plan) []string {
	// dependents: кто зависит от данного шага
	dependents := make(map[string][]string, len(plan.Tasks))
	for i := range plan.Tasks {
		for _, dep := range plan.Tasks[i].Dependencies {
			dependents[dep] = append(dependents[dep], plan.Tasks[i].ID)
		}
	}

	reachable := make(map[string]bool, len(plan.Tasks))
	queue := plan.RootTasks()
	for _, id := range queue {
		reachable[id] = true
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range dependents[current] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	var unreachable []string
	for i := range plan.Tasks {
		if !reachable[plan.Tasks[i].ID] {
			unreachable = append(unreachable, plan.Tasks[i].ID)
		}
	}
	return unreachable
}
