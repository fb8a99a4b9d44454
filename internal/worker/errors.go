package worker

import "errors"

// Ошибки worker.
var (
	// ErrBadPayload — payload job не распарсился в план.
	ErrBadPayload = errors.New("job payload is not a valid plan")
)
