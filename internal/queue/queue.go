package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/pagopa/interop-tracing-core-sub000/internal/observability"
)

// ErrUnprocessable marks a message that can never succeed (malformed JSON,
// unparseable object key). The consumer acks and drops it instead of letting
// the broker redeliver it forever.
var ErrUnprocessable = errors.New("unprocessable message")

// Handler processes one decoded delivery body.
type Handler func(ctx context.Context, body []byte) error

// Publisher is the sending half of the transport.
type Publisher interface {
	Publish(ctx context.Context, queue string, v any) error
}

// Client wraps one AMQP connection. Publishing shares a channel; every
// consumer loop opens its own so prefetch limits stay per-consumer.
type Client struct {
	conn   *amqp.Connection
	pubCh  *amqp.Channel
	logger *zap.Logger
}

// Dial connects to the broker, retrying while it comes up.
func Dial(ctx context.Context, url string, logger *zap.Logger) (*Client, error) {
	var conn *amqp.Connection
	var err error
	for i := 0; i < 10; i++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Second * time.Duration(1+i)):
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to broker: %w", err)
	}

	pubCh, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open publish channel: %w", err)
	}

	return &Client{conn: conn, pubCh: pubCh, logger: logger}, nil
}

// Declare creates the given durable queues if they do not exist.
func (c *Client) Declare(queues ...string) error {
	for _, queue := range queues {
		if _, err := c.pubCh.QueueDeclare(queue, true, false, false, false, nil); err != nil {
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}
	return nil
}

// Publish sends v as a persistent JSON message.
func (c *Client) Publish(ctx context.Context, queue string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message for %s: %w", queue, err)
	}

	err = c.pubCh.PublishWithContext(ctx, "", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}
	observability.MessagesPublished.WithLabelValues(queue).Inc()
	return nil
}

// Consume blocks reading one message at a time from queue until ctx is
// cancelled. Successful handling acks; ErrUnprocessable acks and drops;
// any other error nacks with requeue so the broker's redelivery policy
// applies.
func (c *Client) Consume(ctx context.Context, queue string, handler Handler) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open channel for %s: %w", queue, err)
	}
	defer ch.Close()

	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("failed to set prefetch on %s: %w", queue, err)
	}

	deliveries, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("failed to consume %s: %w", queue, err)
	}

	c.logger.Info("consuming", zap.String("queue", queue))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel for %s closed", queue)
			}

			err := handler(ctx, d.Body)
			switch {
			case err == nil:
				observability.MessagesProcessed.WithLabelValues(queue, "success").Inc()
				if ackErr := d.Ack(false); ackErr != nil {
					c.logger.Error("ack failed", zap.String("queue", queue), zap.Error(ackErr))
				}
			case errors.Is(err, ErrUnprocessable):
				observability.MessagesProcessed.WithLabelValues(queue, "dropped").Inc()
				c.logger.Error("dropping unprocessable message", zap.String("queue", queue), zap.Error(err))
				if ackErr := d.Ack(false); ackErr != nil {
					c.logger.Error("ack failed", zap.String("queue", queue), zap.Error(ackErr))
				}
			default:
				observability.MessagesProcessed.WithLabelValues(queue, "failure").Inc()
				c.logger.Error("handler failed, requeueing", zap.String("queue", queue), zap.Error(err))
				if nackErr := d.Nack(false, true); nackErr != nil {
					c.logger.Error("nack failed", zap.String("queue", queue), zap.Error(nackErr))
				}
			}
		}
	}
}

// Close tears down the connection and its channels.
func (c *Client) Close() {
	if c.pubCh != nil {
		c.pubCh.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
}
