// Package handlers содержит встроенные handler'ы шагов плана:
//
//   - fetch.go — HTTP GET внешнего ресурса
//   - format.go — рендеринг итогового текста через Go template
//
// LLM-шаги (search, summarize, analyze, synthesize, extract)
// регистрируются внешними компонентами через тот же контракт.
package handlers
