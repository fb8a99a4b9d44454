package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler обрабатывает доставленное сообщение.
// nil — сообщение подтверждается; error — возвращается в очередь на retry.
type Handler func(ctx context.Context, msg *Delivery) error

// Delivery — декодированное сообщение с метаданными доставки.
// Ack/nack решает consumer по результату handler'а.
type Delivery struct {
	// Message — конверт сообщения (id, type, payload).
	Message Message

	// RoutingKey — ключ маршрутизации, с которым сообщение пришло.
	RoutingKey string

	// Redelivered — сообщение уже доставлялось и было возвращено.
	Redelivered bool
}

// Consumer читает одну очередь RabbitMQ и переживает разрывы соединения:
// при закрытии канала доставки ждёт redial от Connection и подписывается
// заново. Ack ручной, недекодируемые сообщения уходят в DLQ без retry.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — имя обслуживаемой очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — окно неподтверждённых сообщений (default: 1).
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start потребляет сообщения до отмены контекста или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		deliveries, err := c.open()
		if err != nil {
			c.logger.Error("consume setup failed", "queue", c.queue, "error", err)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
			continue
		}

		c.logger.Info("consuming", "queue", c.queue, "prefetch", c.prefetch)

		if err := c.drain(ctx, deliveries); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			// Канал доставки закрыт брокером — подписка переоформляется
			// после redial
			c.logger.Warn("delivery stream closed", "queue", c.queue)
			if err := c.awaitReconnect(ctx); err != nil {
				return err
			}
		}
	}
}

// open оформляет подписку на очередь с ручным ack.
func (c *Consumer) open() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, fmt.Errorf("no channel available")
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume %s: %w", c.queue, err)
	}
	return deliveries, nil
}

// awaitReconnect блокируется до redial соединения или отмены контекста.
func (c *Consumer) awaitReconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, resuming consumer", "queue", c.queue)
		return nil
	}
}

// drain обрабатывает сообщения, пока канал доставки открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case raw, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("deliveries channel closed")
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch декодирует сообщение, вызывает handler и подтверждает исход.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		// Битый конверт не лечится повтором — сразу в DLQ
		c.logger.Error("undecodable message rejected",
			"queue", c.queue,
			"routing_key", raw.RoutingKey,
			"error", err,
		)
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("message received",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
		"redelivered", raw.Redelivered,
	)

	err := c.handler(ctx, &Delivery{
		Message:     msg,
		RoutingKey:  raw.RoutingKey,
		Redelivered: raw.Redelivered,
	})
	if err != nil {
		c.logger.Error("message handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"redelivered", raw.Redelivered,
			"error", err,
		)
		// Requeue на retry; исчерпание решает DLQ-политика очереди
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}

// ParsePayload декодирует payload конверта в конкретный тип.
// Payload после json.Unmarshal конверта живёт как map, поэтому
// проходит через повторный marshal.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal %s payload: %w", msg.Type, err)
	}
	return result, nil
}
