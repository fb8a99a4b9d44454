package failsafe

import "errors"

// Ошибки fail-safe слоя.
var (
	// ErrTimeout — операция превысила таймаут попытки.
	// Отличается от ошибок handler'а: таймауты по умолчанию ретраятся.
	ErrTimeout = errors.New("operation timed out")

	// ErrRetryExhausted — все попытки retry исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrNonRetryable — операция пометила ошибку как неретраиваемую.
	ErrNonRetryable = errors.New("non-retryable error")

	// ErrNoOperation — ExecuteWithRetry вызван без операции.
	ErrNoOperation = errors.New("no operation provided")
)

// nonRetryableError — обёртка, запрещающая retry для доменных ошибок.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string {
	return e.err.Error()
}

func (e *nonRetryableError) Unwrap() error {
	return e.err
}

func (e *nonRetryableError) Is(target error) bool {
	return target == ErrNonRetryable
}

// NonRetryable помечает ошибку как неретраиваемую.
// FailSafe прекращает попытки сразу, не дожидаясь исчерпания бюджета.
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsRetryable возвращает false для неретраиваемых ошибок.
func IsRetryable(err error) bool {
	return !errors.Is(err, ErrNonRetryable)
}
