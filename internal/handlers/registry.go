package handlers

import (
	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/executor"
)

// RegisterDefaults регистрирует встроенные handler'ы.
//
// Остальные типы шагов (search, summarize и прочие LLM-шаги)
// подключаются внешними компонентами через Executor.Register —
// ядру безразлично, что handler делает внутри.
func RegisterDefaults(e *executor.Executor) {
	e.Register(domain.TaskTypeFetch, NewFetchHandler())
	e.Register(domain.TaskTypeFormat, NewFormatHandler())
}
