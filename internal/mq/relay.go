package mq

import (
	"context"
	"log/slog"
	"time"

	"github.com/omnibrowser/redix-core/internal/domain"
	"github.com/omnibrowser/redix-core/internal/eventbus"
)

// relayTimeout ограничивает best-effort публикацию relay.
const relayTimeout = 2 * time.Second

// NewEventRelay строит eventbus.RelayFunc поверх Publisher.
//
// Relay — вторичный канал наблюдаемости: вызывается event bus'ом
// асинхронно, никогда не блокирует основной путь публикации;
// неудачи ретранслируются в метрику на стороне bus'а.
func NewEventRelay(pub *Publisher) eventbus.RelayFunc {
	return func(event domain.Event) error {
		ctx, cancel := context.WithTimeout(context.Background(), relayTimeout)
		defer cancel()
		return pub.PublishEvent(ctx, event)
	}
}

// EventAppender принимает просеквенированные события (обычно *eventbus.Bus).
type EventAppender interface {
	Append(event domain.Event)
}

// NewEventIngestConsumer строит consumer очереди events.stream,
// вносящий полученные события в локальный bus API-процесса.
// Sequence назначен процессом-издателем и сохраняется как есть.
func NewEventIngestConsumer(conn *Connection, logger *slog.Logger, bus EventAppender) *Consumer {
	return NewConsumer(conn, logger, ConsumerConfig{
		Queue:    string(QueueEventsStream),
		Prefetch: 64,
		Handler: func(ctx context.Context, msg *Delivery) error {
			event, err := ParsePayload[domain.Event](&msg.Message)
			if err != nil {
				return err
			}
			bus.Append(event)
			return nil
		},
	})
}
