// Package queue реализует долговечную очередь работ:
// enqueue с приоритетами и задержкой, lease с таймаутом видимости,
// ack/nack с экспоненциальным retry, rate limiting, ограничение
// одновременных lease'ов воркера и dead-letter при исчерпании попыток.
//
// Доставка at-least-once; безопасность повторной доставки обеспечивает
// дедупликация по детерминированному jobID и пакет failsafe.
package queue
