package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeJobs   Exchange = "redix.jobs"
	ExchangeEvents Exchange = "redix.events"
	ExchangeDLQ    Exchange = "redix.dlq"
)

// Queues — имена очередей.
const (
	QueueJobsEnqueued  Queue = "jobs.enqueued"
	QueueJobsCompleted Queue = "jobs.completed"
	QueueEventsStream  Queue = "events.stream"
	QueueDLQJobs       Queue = "dlq.jobs"
)

// Routing keys.
const (
	RoutingKeyEnqueued  RoutingKey = "enqueued"
	RoutingKeyCompleted RoutingKey = "completed"
	RoutingKeyStream    RoutingKey = "stream"
	RoutingKeyDLQJobs   RoutingKey = "jobs"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeJobs, "direct"},
		{ExchangeEvents, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQJobs),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// jobs.enqueued — с DLQ (нераспарсенные нотификации уходят в DLQ)
		{QueueJobsEnqueued, dlqArgs},

		// jobs.completed — без DLQ (уведомления о завершении)
		{QueueJobsCompleted, nil},

		// events.stream — без DLQ (best-effort relay, durability в history ring)
		{QueueEventsStream, nil},

		// dlq.jobs — сама DLQ очередь
		{QueueDLQJobs, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueJobsEnqueued, RoutingKeyEnqueued, ExchangeJobs},
		{QueueJobsCompleted, RoutingKeyCompleted, ExchangeJobs},
		{QueueEventsStream, RoutingKeyStream, ExchangeEvents},
		{QueueDLQJobs, RoutingKeyDLQJobs, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Redix RabbitMQ Topology:

    redix.jobs (direct)
    ├── jobs.enqueued [routing: enqueued]
    │       Consumer: Worker (нотификация о новой работе)
    │       DLQ: dlq.jobs
    └── jobs.completed [routing: completed]
            Consumer: API (инвалидация статусных кэшей)

    redix.events (direct)
    └── events.stream [routing: stream]
            Consumer: API / StreamingGateway

    redix.dlq (direct)
    └── dlq.jobs [routing: jobs]
            Manual processing
  `
}
