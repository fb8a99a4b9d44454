package failsafe

import (
	"context"
	"sync"
	"time"
)

// Entry — запись dead-letter ring.
type Entry struct {
	// Payload — данные операции для последующего recovery.
	Payload any

	// LastError — текст последней ошибки.
	LastError string

	// Attempts — количество выполненных попыток.
	Attempts int

	// FailedAt — время попадания в dead-letter.
	FailedAt time.Time

	// seq — стабильная идентичность записи в ring; назначается Append.
	// Позиция записи в слайсе меняется при вытеснении, seq — нет.
	seq uint64
}

// DeadLetterRing — bounded FIFO буфер необработанных записей.
// При переполнении старейшая запись вытесняется.
type DeadLetterRing struct {
	mu      sync.Mutex
	entries []Entry
	cap     int
	nextSeq uint64
}

// NewDeadLetterRing создаёт ring ёмкостью capacity.
func NewDeadLetterRing(capacity int) *DeadLetterRing {
	if capacity <= 0 {
		capacity = defaultDeadLetterCap
	}
	return &DeadLetterRing{
		entries: make([]Entry, 0, capacity),
		cap:     capacity,
	}
}

// Append добавляет запись, вытесняя старейшую при переполнении.
func (r *DeadLetterRing) Append(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry.seq = r.nextSeq
	r.nextSeq++

	if len(r.entries) >= r.cap {
		r.entries = r.entries[1:]
	}
	r.entries = append(r.entries, entry)
}

// Entries возвращает снимок записей в порядке поступления.
func (r *DeadLetterRing) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]Entry, len(r.entries))
	copy(snapshot, r.entries)
	return snapshot
}

// Len возвращает количество записей.
func (r *DeadLetterRing) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// remove удаляет записи по seq после успешного recovery.
// Совпадение по seq, а не по позиции: конкурентный Append мог
// вытеснить записи и сдвинуть индексы с момента снимка.
func (r *DeadLetterRing) remove(processed map[uint64]bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.entries[:0]
	for _, entry := range r.entries {
		if !processed[entry.seq] {
			kept = append(kept, entry)
		}
	}
	r.entries = kept
}

// Processor — функция обработки dead-letter записи при recovery.
type Processor func(ctx context.Context, entry Entry) error

// RecoverDeadLetters повторно обрабатывает накопленные записи.
//
// Успешно обработанные записи удаляются из ring, неудачные остаются.
// Возвращает количество восстановленных записей и первую ошибку.
func (r *DeadLetterRing) RecoverDeadLetters(ctx context.Context, processor Processor) (int, error) {
	snapshot := r.Entries()

	processed := make(map[uint64]bool, len(snapshot))
	var firstErr error

	for _, entry := range snapshot {
		if ctx.Err() != nil {
			if firstErr == nil {
				firstErr = ctx.Err()
			}
			break
		}
		if err := processor(ctx, entry); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		processed[entry.seq] = true
	}

	if len(processed) > 0 {
		r.remove(processed)
	}

	return len(processed), firstErr
}
