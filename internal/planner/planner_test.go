package planner

import (
	"errors"
	"strings"
	"testing"

	"github.com/omnibrowser/redix-core/internal/domain"
)

func TestCreatePlan_ResearchSkeleton(t *testing.T) {
	p := New(Config{})

	plan, err := p.CreatePlan(domain.Intent{
		Query: "what is quantum computing",
		Type:  IntentResearch,
	}, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Базовый скелет: search → fetch → extract → summarize → synthesize → format
	expected := []string{"search-1", "fetch-1", "extract-1", "summarize-1", "synthesize-1", "format-1"}
	if len(plan.Tasks) != len(expected) {
		t.Fatalf("expected %d tasks, got %d", len(expected), len(plan.Tasks))
	}
	for i, id := range expected {
		if plan.Tasks[i].ID != id {
			t.Errorf("task %d: expected %s, got %s", i, id, plan.Tasks[i].ID)
		}
	}

	// synthesize собирает fan-in по summarize
	synth := plan.TaskByID("synthesize-1")
	if len(synth.Dependencies) != 1 || synth.Dependencies[0] != "summarize-1" {
		t.Errorf("synthesize should depend on summarize-1, got %v", synth.Dependencies)
	}

	// Все шаги создаются в PENDING
	for i := range plan.Tasks {
		if plan.Tasks[i].Status != domain.TaskStatusPending {
			t.Errorf("task %s: expected PENDING, got %s", plan.Tasks[i].ID, plan.Tasks[i].Status)
		}
	}
}

func TestCreatePlan_ComplexAddsAnalyze(t *testing.T) {
	p := New(Config{})

	plan, err := p.CreatePlan(domain.Intent{
		Query:      "compare fusion approaches",
		Type:       IntentResearch,
		Complexity: domain.ComplexityComplex,
	}, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	analyze := plan.TaskByID("analyze-1")
	if analyze == nil {
		t.Fatal("complex intent should add analyze step")
	}

	// synthesize делает fan-in по summarize и analyze
	synth := plan.TaskByID("synthesize-1")
	if len(synth.Dependencies) != 2 {
		t.Errorf("synthesize should depend on summarize and analyze, got %v", synth.Dependencies)
	}
}

func TestCreatePlan_CounterpointBranch(t *testing.T) {
	p := New(Config{})

	plan, err := p.CreatePlan(domain.Intent{
		Query:         "is remote work productive",
		Type:          IntentResearch,
		Counterpoints: true,
	}, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, id := range []string{"search-counter", "fetch-counter", "summarize-counter"} {
		if plan.TaskByID(id) == nil {
			t.Errorf("expected counterpoint step %s", id)
		}
	}

	// Ветка вливается в synthesize
	synth := plan.TaskByID("synthesize-1")
	found := false
	for _, dep := range synth.Dependencies {
		if dep == "summarize-counter" {
			found = true
		}
	}
	if !found {
		t.Errorf("synthesize should fan-in summarize-counter, got %v", synth.Dependencies)
	}
}

func TestCreatePlan_EstimatesScaleWithComplexity(t *testing.T) {
	p := New(Config{})

	intent := domain.Intent{Query: "q", Type: IntentSummarize}

	simple, err := p.CreatePlan(intent, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	intent.Complexity = domain.ComplexityComplex
	hard, err := p.CreatePlan(intent, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if hard.EstimatedTimeSeconds != simple.EstimatedTimeSeconds*2 {
		t.Errorf("complex time should be 2x simple: %v vs %v",
			hard.EstimatedTimeSeconds, simple.EstimatedTimeSeconds)
	}
	// Стоимость от сложности не зависит
	if hard.EstimatedCost != simple.EstimatedCost {
		t.Errorf("cost should not scale with complexity: %v vs %v",
			hard.EstimatedCost, simple.EstimatedCost)
	}
}

func TestCreatePlan_MaxStepsDropsOptionalFirst(t *testing.T) {
	// research + complex + counterpoints = 10 шагов; лимит 7
	// отбрасывает trailing optional (counterpoint-ветка, analyze, extract)
	p := New(Config{MaxSteps: 7})

	plan, err := p.CreatePlan(domain.Intent{
		Query:         "q",
		Type:          IntentResearch,
		Complexity:    domain.ComplexityComplex,
		Counterpoints: true,
	}, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Tasks) > 7 {
		t.Fatalf("expected at most 7 tasks, got %d", len(plan.Tasks))
	}

	// Обязательные шаги остались
	for _, id := range []string{"search-1", "fetch-1", "summarize-1", "synthesize-1", "format-1"} {
		if plan.TaskByID(id) == nil {
			t.Errorf("required step %s was dropped", id)
		}
	}

	// Граф остался валидным после перешивки зависимостей
	result := p.ValidatePlan(plan)
	if !result.Valid {
		t.Errorf("capped plan should remain valid, errors: %v", result.Errors)
	}
}

func TestCreatePlan_TooManyRequiredSteps(t *testing.T) {
	p := New(Config{MaxSteps: 3})

	// compare: 9 обязательных шагов, optional нет
	_, err := p.CreatePlan(domain.Intent{Query: "a vs b", Type: IntentCompare}, "user-1")
	if !errors.Is(err, ErrTooManySteps) {
		t.Errorf("expected ErrTooManySteps, got %v", err)
	}
}

func TestCreatePlan_EmptyQuery(t *testing.T) {
	p := New(Config{})

	_, err := p.CreatePlan(domain.Intent{Type: IntentResearch}, "user-1")
	if !errors.Is(err, ErrEmptyQuery) {
		t.Errorf("expected ErrEmptyQuery, got %v", err)
	}
}

func TestCreatePlan_UnknownIntentType(t *testing.T) {
	p := New(Config{})

	_, err := p.CreatePlan(domain.Intent{Query: "q", Type: "translate"}, "user-1")
	if !errors.Is(err, ErrUnknownIntentType) {
		t.Errorf("expected ErrUnknownIntentType, got %v", err)
	}
}

func TestCreatePlan_SafeTypesLowRisk(t *testing.T) {
	p := New(Config{})

	plan, err := p.CreatePlan(domain.Intent{Query: "q", Type: IntentResearch}, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if plan.RiskLevel != domain.RiskLevelLow {
		t.Errorf("all-safe plan should be low risk, got %s", plan.RiskLevel)
	}
	if plan.RequiresApproval {
		t.Error("all-safe plan should not require approval")
	}
}

func TestCreatePlan_UnsafeTypesRequireApproval(t *testing.T) {
	// Узкий allow-list: fetch и format вне списка
	p := New(Config{SafeTypes: []domain.TaskType{
		domain.TaskTypeSearch,
		domain.TaskTypeExtract,
		domain.TaskTypeSummarize,
		domain.TaskTypeAnalyze,
		domain.TaskTypeSynthesize,
	}})

	plan, err := p.CreatePlan(domain.Intent{Query: "q", Type: IntentResearch}, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !plan.RequiresApproval {
		t.Error("plan with unsafe steps should require approval")
	}
	if plan.RiskLevel != domain.RiskLevelHigh {
		t.Errorf("plan with 2 unsafe steps should be high risk, got %s", plan.RiskLevel)
	}
}

func TestValidatePlan_UnknownDependency(t *testing.T) {
	p := New(Config{})

	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeSearch},
		{ID: "b", Type: domain.TaskTypeFetch, Dependencies: []string{"missing"}},
	}}

	result := p.ValidatePlan(plan)
	if result.Valid {
		t.Fatal("plan with unknown dependency should be invalid")
	}
	if len(result.Errors) != 1 || !strings.Contains(result.Errors[0], "missing") {
		t.Errorf("expected unknown dependency error, got %v", result.Errors)
	}
}

func TestValidatePlan_SelfDependency(t *testing.T) {
	p := New(Config{})

	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeSearch},
		{ID: "b", Type: domain.TaskTypeFetch, Dependencies: []string{"b"}},
	}}

	result := p.ValidatePlan(plan)
	if result.Valid {
		t.Fatal("plan with self-dependency should be invalid")
	}
	if !strings.Contains(result.Errors[0], "itself") {
		t.Errorf("expected self-dependency error, got %v", result.Errors)
	}
}

func TestValidatePlan_NoRootTasks(t *testing.T) {
	p := New(Config{})

	// Цикл a↔b: корней нет
	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeSearch, Dependencies: []string{"b"}},
		{ID: "b", Type: domain.TaskTypeFetch, Dependencies: []string{"a"}},
	}}

	result := p.ValidatePlan(plan)
	if result.Valid {
		t.Fatal("plan with no roots should be invalid")
	}
}

func TestValidatePlan_UnreachableWarning(t *testing.T) {
	p := New(Config{})

	// c и d образуют цикл, недостижимый из корня a
	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeSearch},
		{ID: "b", Type: domain.TaskTypeFormat, Dependencies: []string{"a"}},
		{ID: "c", Type: domain.TaskTypeFetch, Dependencies: []string{"d"}},
		{ID: "d", Type: domain.TaskTypeFetch, Dependencies: []string{"c"}},
	}}

	result := p.ValidatePlan(plan)
	if !result.Valid {
		t.Fatalf("unreachable tasks are a warning, not an error: %v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Errorf("expected 2 unreachable warnings, got %v", result.Warnings)
	}
}

func TestValidatePlan_ThresholdWarnings(t *testing.T) {
	p := New(Config{TimeWarnThreshold: 1, CostWarnThreshold: 1})

	plan, err := p.CreatePlan(domain.Intent{Query: "q", Type: IntentResearch}, "user-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result := p.ValidatePlan(plan)
	if !result.Valid {
		t.Fatalf("threshold overruns are warnings: %v", result.Errors)
	}
	if len(result.Warnings) != 2 {
		t.Errorf("expected time and cost warnings, got %v", result.Warnings)
	}
}

func TestValidatePlan_DoesNotMutate(t *testing.T) {
	p := New(Config{})

	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeSearch, Status: domain.TaskStatusPending},
	}}

	p.ValidatePlan(plan)

	if plan.Tasks[0].Status != domain.TaskStatusPending {
		t.Error("validation must not mutate the plan")
	}
}

func TestOptimizePlan_PrunesUnreachable(t *testing.T) {
	p := New(Config{})

	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeSearch},
		{ID: "b", Type: domain.TaskTypeFormat, Dependencies: []string{"a"}},
		{ID: "dead-1", Type: domain.TaskTypeFetch, Dependencies: []string{"dead-2"}},
		{ID: "dead-2", Type: domain.TaskTypeFetch, Dependencies: []string{"dead-1"}},
	}}

	optimized := p.OptimizePlan(plan, domain.ComplexitySimple)

	if len(optimized.Tasks) != 2 {
		t.Fatalf("expected 2 tasks after pruning, got %d", len(optimized.Tasks))
	}
	if optimized.TaskByID("dead-1") != nil || optimized.TaskByID("dead-2") != nil {
		t.Error("unreachable tasks should be pruned")
	}

	// Вход не мутируется
	if len(plan.Tasks) != 4 {
		t.Errorf("input plan must not be mutated, got %d tasks", len(plan.Tasks))
	}

	// Оценки пересчитаны по усечённому набору
	wantTime := baseTimeSeconds[domain.TaskTypeSearch] + baseTimeSeconds[domain.TaskTypeFormat]
	if optimized.EstimatedTimeSeconds != wantTime {
		t.Errorf("expected recomputed time %v, got %v", wantTime, optimized.EstimatedTimeSeconds)
	}
}

func TestOptimizePlan_NoChangeReturnsClone(t *testing.T) {
	p := New(Config{})

	plan := &domain.Plan{Tasks: []domain.Task{
		{ID: "a", Type: domain.TaskTypeSearch},
	}}

	optimized := p.OptimizePlan(plan, domain.ComplexitySimple)
	optimized.Tasks[0].Status = domain.TaskStatusFailed

	if plan.Tasks[0].Status == domain.TaskStatusFailed {
		t.Error("optimize must return an independent copy")
	}
}
