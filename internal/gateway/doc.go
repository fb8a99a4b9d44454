// Package gateway раздаёт события прогресса jobs WebSocket-клиентам.
//
// Протокол кадров:
//
//	client → {"type":"subscribe","job_id":"job-1","from_sequence":7}
//	server → {"type":"subscribed","job_id":"job-1","last_sequence":12}
//	server → {"type":"events","job_id":"job-1","events":[...]}
//	client → {"type":"unsubscribe","job_id":"job-1"}
//
// Подписка начинается с replay истории после from_sequence, затем
// переходит на live-поток. Backpressure медленных клиентов гасится
// per-connection буфером: батчи не превышают потолок, подряд идущие
// job:progress сливаются в последний.
package gateway
