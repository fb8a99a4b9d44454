package mq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Параметры экспоненциального backoff при redial.
const (
	redialBase = time.Second
	redialMax  = 30 * time.Second
)

// Connection держит одно AMQP соединение и общий канал.
//
// При разрыве передоговаривается с экспоненциальной задержкой;
// потребители узнают о новом канале через ReconnectNotify и
// переоформляют подписки сами. Publish между разрывом и redial
// возвращает ошибку, а не блокируется.
type Connection struct {
	url    string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool

	done     chan struct{}
	redialed chan struct{}
}

// NewConnection подключается к RabbitMQ и следит за соединением.
func NewConnection(url string, logger *slog.Logger) (*Connection, error) {
	c := &Connection{
		url:      url,
		logger:   logger,
		done:     make(chan struct{}),
		redialed: make(chan struct{}, 1),
	}

	if err := c.dial(); err != nil {
		return nil, err
	}

	go c.supervise()

	return c, nil
}

// dial устанавливает соединение и открывает общий канал.
func (c *Connection) dial() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = ch

	c.logger.Info("connected to RabbitMQ")
	return nil
}

// supervise ждёт закрытия соединения и запускает redial.
func (c *Connection) supervise() {
	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(redialBase)
			continue
		}

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.done:
			return
		case err := <-notifyClose:
			if err != nil {
				c.logger.Warn("amqp connection lost", "error", err)
			}
			c.redial()
		}
	}
}

// redial переподключается с экспоненциальной задержкой до успеха
// или до Close.
func (c *Connection) redial() {
	delay := redialBase

	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		c.mu.RUnlock()

		c.logger.Info("redialing RabbitMQ", "delay", delay)
		time.Sleep(delay)

		if err := c.dial(); err != nil {
			c.logger.Warn("redial failed", "error", err)
			delay = min(delay*2, redialMax)
			continue
		}

		// Будим подписчиков, ждущих новый канал
		select {
		case c.redialed <- struct{}{}:
		default:
		}
		return
	}
}

// Channel возвращает текущий общий канал (nil между разрывом и redial).
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// ReconnectNotify возвращает канал уведомлений об успешном redial.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.redialed
}

// Close закрывает соединение и останавливает supervise.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true
	close(c.done)

	var errs []error

	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return errs[0]
	}

	c.logger.Info("amqp connection closed")
	return nil
}

// IsConnected сообщает, живо ли соединение сейчас.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// WithChannel выполняет fn на текущем канале.
// Между разрывом и redial возвращает ошибку без ожидания.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil {
		return fmt.Errorf("no channel available")
	}
	return fn(ch)
}
