package domain

// TaskStatus — статус выполнения task.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
type TaskStatus string

const (
	// TaskStatusPending — task создан, ожидает выполнения.
	TaskStatusPending TaskStatus = "PENDING"

	// TaskStatusRunning — task выполняется.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusCompleted — task успешно завершён.
	TaskStatusCompleted TaskStatus = "COMPLETED"

	// TaskStatusFailed — task завершился с ошибкой
	// (прямой сбой handler'а либо недостижимая/циклическая зависимость).
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusCompleted, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// JobStatus — статус выполнения job.
//
// Жизненный цикл:
//
//	CREATED → QUEUED → RUNNING → COMPLETED
//	                           ↘ FAILED
//	                 ↘ PAUSED → QUEUED (resume)
//	          (или) → CANCELLED (из любого нетерминального)
type JobStatus string

const (
	// JobStatusCreated — job создан, но ещё не поставлен в очередь.
	JobStatusCreated JobStatus = "CREATED"

	// JobStatusQueued — job в очереди, ожидает lease воркером.
	JobStatusQueued JobStatus = "QUEUED"

	// JobStatusRunning — job выполняется воркером, держащим lease.
	JobStatusRunning JobStatus = "RUNNING"

	// JobStatusPaused — job приостановлен; resume возвращает его в QUEUED.
	JobStatusPaused JobStatus = "PAUSED"

	// JobStatusCompleted — job успешно завершён.
	JobStatusCompleted JobStatus = "COMPLETED"

	// JobStatusFailed — job завершился с ошибкой (после всех retry).
	JobStatusFailed JobStatus = "FAILED"

	// JobStatusCancelled — job отменён. Отмена кооперативная:
	// воркер замечает статус на ближайшей checkpoint-границе.
	JobStatusCancelled JobStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный (job завершён).
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// RiskLevel — уровень риска плана.
type RiskLevel string

const (
	RiskLevelLow    RiskLevel = "low"
	RiskLevelMedium RiskLevel = "medium"
	RiskLevelHigh   RiskLevel = "high"
)

// Complexity — сложность intent'а, влияет на оценки и форму pipeline.
type Complexity string

const (
	ComplexitySimple  Complexity = "simple"
	ComplexityMedium  Complexity = "medium"
	ComplexityComplex Complexity = "complex"
)

// Multiplier возвращает множитель времени для сложности.
func (c Complexity) Multiplier() float64 {
	switch c {
	case ComplexityMedium:
		return 1.5
	case ComplexityComplex:
		return 2.0
	default:
		return 1.0
	}
}
