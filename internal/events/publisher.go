package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher emits domain events. Implementations must be safe for concurrent
// use; a failed publish must never block or fail the originating transition.
type Publisher interface {
	Publish(ctx context.Context, key string, env Envelope) error
	Close() error
}

// rmqPublisher publishes to a durable topic exchange.
type rmqPublisher struct {
	conn     *amqp.Connection
	exchange string
}

// NewPublisher connects to RabbitMQ and declares the exchange. If url is
// empty a no-op publisher is returned so local development works without a
// broker.
func NewPublisher(url, exchange string) (Publisher, error) {
	if url == "" {
		log.Println("AMQP_URL not set, domain events will not be published.")
		return NoopPublisher{}, nil
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	defer ch.Close()

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &rmqPublisher{conn: conn, exchange: exchange}, nil
}

func (p *rmqPublisher) Publish(ctx context.Context, key string, env Envelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal event %s: %w", env.Meta.Kind, err)
	}

	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("failed to open AMQP channel: %w", err)
	}
	defer ch.Close()

	err = ch.PublishWithContext(ctx, p.exchange, key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    env.Meta.EventID,
		Timestamp:    env.Meta.OccurredAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", key, err)
	}
	return nil
}

func (p *rmqPublisher) Close() error {
	return p.conn.Close()
}

// NoopPublisher drops all events. Used when AMQP is not configured and in
// service tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, key string, env Envelope) error { return nil }
func (NoopPublisher) Close() error                                                { return nil }
