// Package failsafe содержит механизмы устойчивости к сбоям:
//
//   - failsafe.go — retry с экспоненциальным backoff и таймаутом попытки
//   - dedup.go — дедупликация операций по ключу в пределах TTL-окна
//   - deadletter.go — bounded dead-letter ring и offline recovery
//
// Пакет делает at-least-once доставку безопасной: повторная доставка
// гасится маркером дедупликации, зависшая операция обрывается таймаутом,
// а исчерпавшая бюджет retry — сохраняется для ручного разбора.
package failsafe
