package handlers

import "errors"

// Ошибки handler'ов.
var (
	// ErrNoURL — fetch-шаг не получил URL ни из inputs, ни из зависимостей.
	ErrNoURL = errors.New("no url in inputs or dependency outputs")
)
