// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений в очереди
//   - consumer.go   — потребление сообщений из очередей
//   - relay.go      — мост eventbus ↔ MQ между процессами
//
// Типы сообщений:
//   - job.enqueued    — новый job поставлен в очередь
//   - job.completed   — job достиг терминального статуса
//   - event           — событие прогресса для стриминга клиентам
//
// Exchanges:
//   - redix.jobs     — нотификации jobs
//   - redix.events   — события прогресса
//   - redix.dlq      — dead letter queue
package mq
