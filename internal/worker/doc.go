// Package worker реализует выполняющий jobs воркер.
//
// Воркер держит несколько параллельных lease-циклов поверх очереди,
// просыпается по MQ-нотификациям о новых jobs (с polling fallback),
// выполняет план job через Executor и подтверждает исход ack/nack.
// Retry, dead-letter и дедупликацию решает очередь, не воркер.
//
// Жизненный цикл одного job:
//
//	Lease → job:started → Executor.Run (события task'ов, progress
//	checkpoints) → Ack + done | Nack + failed/retry | ConfirmCancel
//	+ cancelled
package worker
