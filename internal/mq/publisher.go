package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/omnibrowser/redix-core/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeJobEnqueued  MessageType = "job.enqueued"
	MessageTypeJobCompleted MessageType = "job.completed"
	MessageTypeEvent        MessageType = "event"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// JobEnqueuedPayload — payload нотификации о новом job.
type JobEnqueuedPayload struct {
	JobID string `json:"job_id"`
	Queue string `json:"queue"`
}

// JobCompletedPayload — payload уведомления о терминальном статусе job.
type JobCompletedPayload struct {
	JobID  string           `json:"job_id"`
	Status domain.JobStatus `json:"status"`
	Error  string           `json:"error,omitempty"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishJobEnqueued публикует нотификацию о новом job в очереди.
// Потребитель: Worker (будит lease-цикл без ожидания poll-интервала).
func (p *Publisher) PublishJobEnqueued(ctx context.Context, jobID, queueName string) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobEnqueued,
		Payload:   JobEnqueuedPayload{JobID: jobID, Queue: queueName},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyEnqueued, msg)
}

// PublishJobCompleted публикует уведомление о терминальном статусе job.
// Потребитель: API.
func (p *Publisher) PublishJobCompleted(ctx context.Context, payload JobCompletedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeJobCompleted,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeJobs, RoutingKeyCompleted, msg)
}

// PublishEvent ретранслирует событие прогресса в events.stream.
// Потребитель: API-процесс, раздающий события WebSocket-клиентам.
func (p *Publisher) PublishEvent(ctx context.Context, event domain.Event) error {
	msg := &Message{
		ID:        event.ID.String(),
		Type:      MessageTypeEvent,
		Payload:   event,
		Timestamp: event.Timestamp,
	}

	return p.Publish(ctx, ExchangeEvents, RoutingKeyStream, msg)
}
