package planner

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omnibrowser/redix-core/internal/domain"
)

// Default configuration values.
const (
	defaultMaxSteps          = 12
	defaultTimeWarnThreshold = 120  // секунды
	defaultCostWarnThreshold = 8000 // units
)

// Типы intent'ов со встроенными скелетами pipeline.
const (
	IntentResearch  = "research"
	IntentSummarize = "summarize"
	IntentCompare   = "compare"
)

// defaultSafeTypes — типы шагов без side-effect'ов.
// Шаг вне allow-list поднимает риск и требует одобрения плана.
var defaultSafeTypes = []domain.TaskType{
	domain.TaskTypeFetch,
	domain.TaskTypeSearch,
	domain.TaskTypeExtract,
	domain.TaskTypeSummarize,
	domain.TaskTypeAnalyze,
	domain.TaskTypeSynthesize,
	domain.TaskTypeFormat,
}

// Config — конфигурация Planner.
type Config struct {
	// MaxSteps — максимальное количество шагов в плане.
	// При превышении trailing optional шаги отбрасываются первыми.
	MaxSteps int

	// TimeWarnThreshold — порог оценки времени (сек) для warning'а валидации.
	TimeWarnThreshold float64

	// CostWarnThreshold — порог оценки стоимости для warning'а валидации.
	CostWarnThreshold float64

	// SafeTypes — allow-list типов шагов без side-effect'ов.
	// Пустой список означает встроенный набор.
	SafeTypes []domain.TaskType

	// Logger
	Logger *slog.Logger
}

// Planner компилирует intent пользователя в Plan — DAG типизированных
// шагов с оценками времени/стоимости и уровнем риска.
type Planner struct {
	cfg       Config
	safeTypes map[domain.TaskType]bool
	logger    *slog.Logger
}

// New создаёт новый Planner.
func New(cfg Config) *Planner {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = defaultMaxSteps
	}
	if cfg.TimeWarnThreshold <= 0 {
		cfg.TimeWarnThreshold = defaultTimeWarnThreshold
	}
	if cfg.CostWarnThreshold <= 0 {
		cfg.CostWarnThreshold = defaultCostWarnThreshold
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	safeList := cfg.SafeTypes
	if len(safeList) == 0 {
		safeList = defaultSafeTypes
	}
	safe := make(map[domain.TaskType]bool, len(safeList))
	for _, t := range safeList {
		safe[t] = true
	}

	return &Planner{cfg: cfg, safeTypes: safe, logger: cfg.Logger}
}

// CreatePlan собирает план для intent'а.
//
// Pipeline — фиксированный скелет для типа intent'а; каждый шаг
// объявляет зависимость от непосредственно производящих его шагов,
// synthesize собирает fan-in по всем summarize/analyze-шагам.
func (p *Planner) CreatePlan(intent domain.Intent, userID string) (*domain.Plan, error) {
	if intent.Query == "" {
		return nil, ErrEmptyQuery
	}

	var tasks []domain.Task
	switch intent.Type {
	case IntentResearch, "":
		tasks = p.researchSkeleton(intent)
	case IntentSummarize:
		tasks = p.summarizeSkeleton(intent)
	case IntentCompare:
		tasks = p.compareSkeleton(intent)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownIntentType, intent.Type)
	}

	tasks, err := capSteps(tasks, p.cfg.MaxSteps)
	if err != nil {
		return nil, err
	}

	timeSeconds, cost := estimate(tasks, intent.Complexity)
	risk, approval := p.assessRisk(tasks)

	plan := &domain.Plan{
		ID:                   uuid.New(),
		UserID:               userID,
		OriginQuery:          intent.Query,
		Tasks:                tasks,
		EstimatedTimeSeconds: timeSeconds,
		EstimatedCost:        cost,
		RiskLevel:            risk,
		RequiresApproval:     approval,
		CreatedAt:            time.Now().UTC(),
	}

	p.logger.Debug("plan created",
		"plan_id", plan.ID,
		"intent_type", intent.Type,
		"steps", len(tasks),
		"estimated_time_seconds", timeSeconds,
		"risk", risk,
	)

	return plan, nil
}

// researchSkeleton: search → fetch → extract → summarize →
// [analyze при complexity≠simple] → [counterpoint-ветка по запросу] →
// synthesize (fan-in) → format.
func (p *Planner) researchSkeleton(intent domain.Intent) []domain.Task {
	tasks := []domain.Task{
		step("search-1", domain.TaskTypeSearch, "Search for sources", nil,
			map[string]any{"query": intent.Query}),
		step("fetch-1", domain.TaskTypeFetch, "Fetch top results", []string{"search-1"}, nil),
		optionalStep("extract-1", domain.TaskTypeExtract, "Extract main content", []string{"fetch-1"}, nil),
		step("summarize-1", domain.TaskTypeSummarize, "Summarize fetched content", []string{"extract-1"}, nil),
	}

	synthDeps := []string{"summarize-1"}

	if intent.Complexity != domain.ComplexitySimple && intent.Complexity != "" {
		tasks = append(tasks,
			optionalStep("analyze-1", domain.TaskTypeAnalyze, "Analyze key claims", []string{"summarize-1"}, nil))
		synthDeps = append(synthDeps, "analyze-1")
	}

	if intent.Counterpoints {
		tasks = append(tasks,
			optionalStep("search-counter", domain.TaskTypeSearch, "Search for opposing views", nil,
				map[string]any{"query": intent.Query, "stance": "counter"}),
			optionalStep("fetch-counter", domain.TaskTypeFetch, "Fetch opposing sources", []string{"search-counter"}, nil),
			optionalStep("summarize-counter", domain.TaskTypeSummarize, "Summarize opposing views", []string{"fetch-counter"}, nil),
		)
		synthDeps = append(synthDeps, "summarize-counter")
	}

	tasks = append(tasks,
		step("synthesize-1", domain.TaskTypeSynthesize, "Synthesize findings", synthDeps, nil),
		step("format-1", domain.TaskTypeFormat, "Format final answer", []string{"synthesize-1"}, nil),
	)

	return tasks
}

// summarizeSkeleton: fetch → extract → summarize → format.
func (p *Planner) summarizeSkeleton(intent domain.Intent) []domain.Task {
	inputs := map[string]any{"query": intent.Query}
	if url, ok := intent.Context["url"]; ok {
		inputs["url"] = url
	}

	return []domain.Task{
		step("fetch-1", domain.TaskTypeFetch, "Fetch the page", nil, inputs),
		optionalStep("extract-1", domain.TaskTypeExtract, "Extract main content", []string{"fetch-1"}, nil),
		step("summarize-1", domain.TaskTypeSummarize, "Summarize the content", []string{"extract-1"}, nil),
		step("format-1", domain.TaskTypeFormat, "Format final answer", []string{"summarize-1"}, nil),
	}
}

// compareSkeleton: две параллельные ветки search → fetch → summarize,
// analyze поверх обеих, synthesize, format.
func (p *Planner) compareSkeleton(intent domain.Intent) []domain.Task {
	return []domain.Task{
		step("search-a", domain.TaskTypeSearch, "Search subject A", nil,
			map[string]any{"query": intent.Query, "side": "a"}),
		step("search-b", domain.TaskTypeSearch, "Search subject B", nil,
			map[string]any{"query": intent.Query, "side": "b"}),
		step("fetch-a", domain.TaskTypeFetch, "Fetch sources for A", []string{"search-a"}, nil),
		step("fetch-b", domain.TaskTypeFetch, "Fetch sources for B", []string{"search-b"}, nil),
		step("summarize-a", domain.TaskTypeSummarize, "Summarize A", []string{"fetch-a"}, nil),
		step("summarize-b", domain.TaskTypeSummarize, "Summarize B", []string{"fetch-b"}, nil),
		step("analyze-1", domain.TaskTypeAnalyze, "Compare both subjects", []string{"summarize-a", "summarize-b"}, nil),
		step("synthesize-1", domain.TaskTypeSynthesize, "Synthesize comparison", []string{"analyze-1"}, nil),
		step("format-1", domain.TaskTypeFormat, "Format final answer", []string{"synthesize-1"}, nil),
	}
}

// assessRisk определяет уровень риска и необходимость одобрения.
// Любой шаг вне allow-list — side-effecting: план требует одобрения.
func (p *Planner) assessRisk(tasks []domain.Task) (domain.RiskLevel, bool) {
	unsafe := 0
	for i := range tasks {
		if !p.safeTypes[tasks[i].Type] {
			unsafe++
		}
	}

	switch {
	case unsafe == 0:
		return domain.RiskLevelLow, false
	case unsafe == 1:
		return domain.RiskLevelMedium, true
	default:
		return domain.RiskLevelHigh, true
	}
}

// capSteps ограничивает план maxSteps шагами.
//
// Trailing optional шаги отбрасываются первыми; зависимости
// downstream-шагов переключаются на зависимости выброшенного шага,
// чтобы граф остался связным. Если обязательных шагов всё ещё
// больше лимита — ErrTooManySteps.
func capSteps(tasks []domain.Task, maxSteps int) ([]domain.Task, error) {
	for len(tasks) > maxSteps {
		dropped := -1
		for i := len(tasks) - 1; i >= 0; i-- {
			if tasks[i].Optional {
				dropped = i
				break
			}
		}
		if dropped == -1 {
			return nil, fmt.Errorf("%w: %d required steps, limit %d", ErrTooManySteps, len(tasks), maxSteps)
		}
		tasks = dropStep(tasks, dropped)
	}
	return tasks, nil
}

// dropStep удаляет шаг idx и переписывает зависимости на его входы.
func dropStep(tasks []domain.Task, idx int) []domain.Task {
	removed := tasks[idx]
	out := append(tasks[:idx:idx], tasks[idx+1:]...)

	for i := range out {
		deps := out[i].Dependencies
		rewired := make([]string, 0, len(deps))
		seen := make(map[string]bool, len(deps))
		for _, dep := range deps {
			if dep != removed.ID {
				if !seen[dep] {
					rewired = append(rewired, dep)
					seen[dep] = true
				}
				continue
			}
			for _, inherited := range removed.Dependencies {
				if !seen[inherited] {
					rewired = append(rewired, inherited)
					seen[inherited] = true
				}
			}
		}
		out[i].Dependencies = rewired
	}
	return out
}

func step(id string, taskType domain.TaskType, description string, deps []string, inputs map[string]any) domain.Task {
	return domain.Task{
		ID:           id,
		Type:         taskType,
		Description:  description,
		Dependencies: deps,
		Inputs:       inputs,
		Status:       domain.TaskStatusPending,
	}
}

func optionalStep(id string, taskType domain.TaskType, description string, deps []string, inputs map[string]any) domain.Task {
	t := step(id, taskType, description, deps, inputs)
	t.Optional = true
	return t
}
