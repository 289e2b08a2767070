package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"rating-service/internal/domain"
	"github.com/rabbitmq/amqp091-go"
)

// DefaultExchange is the topic exchange completion events go to.
const DefaultExchange = "rating.events"

// RoutingKeyRatingCompleted is used for every finished questionnaire.
const RoutingKeyRatingCompleted = "rating.completed"

// Publisher sends rating events to a RabbitMQ topic exchange. With an empty URL it is disabled
// and every publish is a no-op.
type Publisher struct {
	conn     *amqp091.Connection
	channel  *amqp091.Channel
	exchange string
	enabled  bool
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	if url == "" {
		log.Println("rabbitmq url is empty, rating events are disabled")
		return &Publisher{enabled: false}, nil
	}
	if exchange == "" {
		exchange = DefaultExchange
	}

	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect rabbitmq: %w", err)
	}
	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchange, // name
		"topic",  // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}

	return &Publisher{
		conn:     conn,
		channel:  channel,
		exchange: exchange,
		enabled:  true,
	}, nil
}

func (p *Publisher) PublishRatingCompleted(ctx context.Context, event domain.RatingCompleted) error {
	return p.publish(ctx, RoutingKeyRatingCompleted, event)
}

func (p *Publisher) publish(ctx context.Context, routingKey string, event any) error {
	if !p.enabled {
		return nil
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(
		pubCtx,
		p.exchange, // exchange
		routingKey, // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// Enabled reports whether events actually leave the process.
func (p *Publisher) Enabled() bool {
	return p.enabled
}

func (p *Publisher) Close() error {
	if !p.enabled {
		return nil
	}
	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			log.Printf("close rabbitmq channel: %v", err)
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
