package amqphook

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Conn owns a broker connection and the channel events are published on.
type Conn struct {
	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Connect dials url, retrying with backoff until maxAttempts is exhausted or
// ctx ends, then declares exchange as a durable topic exchange.
func Connect(ctx context.Context, url, exchange string, maxAttempts int, logger *slog.Logger) (*Conn, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	delay := time.Second

	for attempt := 1; ; attempt++ {
		c, err := dial(url, exchange)
		if err == nil {
			logger.Info("amqp connected", "exchange", exchange, "attempt", attempt)
			return c, nil
		}
		if attempt == maxAttempts {
			return nil, fmt.Errorf("amqp_hook: connect after %d attempts: %w", attempt, err)
		}
		logger.Warn("amqp connect failed", "attempt", attempt, "retry_in", delay, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = min(delay*3/2, 30*time.Second)
	}
}

func dial(url, exchange string) (*Conn, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return &Conn{conn: conn, ch: ch}, nil
}

// PublishWithContext implements Publisher.
func (c *Conn) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	c.mu.Lock()
	ch := c.ch
	c.mu.Unlock()

	if ch == nil {
		return amqp.ErrClosed
	}
	return ch.PublishWithContext(ctx, exchange, key, mandatory, immediate, msg)
}

// Close closes the channel and the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.ch == nil {
		return nil
	}
	_ = c.ch.Close()
	err := c.conn.Close()
	c.ch, c.conn = nil, nil
	return err
}
