package queue

import "errors"

// Ошибки очереди.
var (
	// ErrJobNotFound — job с таким ID не существует.
	ErrJobNotFound = errors.New("job not found")

	// ErrNoJobAvailable — в очереди нет готового job для lease.
	ErrNoJobAvailable = errors.New("no job available")

	// ErrNotLeased — операция ack/nack вызвана без действующего lease.
	// Чаще всего это значит, что lease истёк и job уже перевыдан.
	ErrNotLeased = errors.New("job is not leased")

	// ErrRateLimited — лимит lease'ов в окне исчерпан.
	ErrRateLimited = errors.New("lease rate limit exceeded")

	// ErrConcurrencyLimit — воркер держит максимум одновременных lease'ов.
	ErrConcurrencyLimit = errors.New("worker concurrency limit reached")

	// ErrJobTerminal — job уже в терминальном статусе.
	ErrJobTerminal = errors.New("job is in a terminal state")

	// ErrNotPaused — resume вызван для job не в статусе PAUSED.
	ErrNotPaused = errors.New("job is not paused")
)
