package planner

import "errors"

// Ошибки планировщика.
var (
	// ErrEmptyQuery — intent не содержит запроса.
	ErrEmptyQuery = errors.New("intent query is empty")

	// ErrUnknownIntentType — для типа intent'а нет скелета pipeline.
	ErrUnknownIntentType = errors.New("unknown intent type")

	// ErrTooManySteps — скелет превышает MaxSteps даже после
	// отбрасывания всех optional шагов.
	ErrTooManySteps = errors.New("plan exceeds max steps")

	// ErrInvalidPlan — план не прошёл валидацию.
	ErrInvalidPlan = errors.New("plan validation failed")
)
