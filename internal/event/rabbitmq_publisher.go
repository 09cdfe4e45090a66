package event

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const publisherAppID = "miniloan-api"

type LoanEventPublisher interface {
	PublishLoanEvent(ctx context.Context, topic Topic, payload LoanEvent) error
}

type RabbitMQEventPublisher struct {
	conn         *amqp.Connection
	exchangeName string
	logger       *slog.Logger
}

func NewRabbitMQEventPublisher(conn *amqp.Connection, exchangeName string, logger *slog.Logger) (*RabbitMQEventPublisher, error) {
	if conn == nil {
		return nil, fmt.Errorf("RabbitMQ connection cannot be nil")
	}
	if exchangeName == "" {
		return nil, fmt.Errorf("RabbitMQ exchange name cannot be empty")
	}

	tempCh, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open temporary channel for exchange declaration: %w", err)
	}
	defer tempCh.Close()

	if err := DeclareExchange(tempCh, exchangeName); err != nil {
		return nil, err
	}
	logger.Info("Ensured RabbitMQ exchange exists", "exchange", exchangeName, "type", amqp.ExchangeTopic)

	return &RabbitMQEventPublisher{
		conn:         conn,
		exchangeName: exchangeName,
		logger:       logger.With("component", "RabbitMQEventPublisher", "exchange", exchangeName),
	}, nil
}

// DeclareExchange declares the durable topic exchange shared by the API and the notifier.
func DeclareExchange(ch *amqp.Channel, exchangeName string) error {
	err := ch.ExchangeDeclare(
		exchangeName,
		amqp.ExchangeTopic,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to declare exchange '%s': %w", exchangeName, err)
	}
	return nil
}

func (p *RabbitMQEventPublisher) PublishLoanEvent(ctx context.Context, topic Topic, payload LoanEvent) error {
	return p.publish(ctx, string(topic), payload)
}

func (p *RabbitMQEventPublisher) publish(ctx context.Context, routingKey string, payload any) error {
	logCtx := p.logger.With(slog.String("routingKey", routingKey))

	channel, err := p.conn.Channel()
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to open RabbitMQ channel", slog.Any("error", err))
		return fmt.Errorf("failed to open channel: %w", err)
	}
	defer channel.Close()

	body, err := json.Marshal(payload)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to marshal event payload to JSON", slog.Any("error", err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	logCtx.DebugContext(ctx, "Publishing message", "bodySize", len(body))

	err = channel.PublishWithContext(
		ctx,
		p.exchangeName,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
			AppId:        publisherAppID,
		},
	)
	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to publish message to RabbitMQ", slog.Any("error", err))
		return fmt.Errorf("failed to publish message: %w", err)
	}

	logCtx.InfoContext(ctx, "Successfully published message")
	return nil
}

// ForwardLoanEvents subscribes to every loan topic on bus and relays the
// payloads to publisher. Publish failures are logged; the bus is never blocked
// by a broker error.
func ForwardLoanEvents(bus *Bus, publisher LoanEventPublisher, logger *slog.Logger) (stop func()) {
	log := logger.With("component", "LoanEventForwarder")
	unsubscribers := make([]func(), 0, len(LoanTopics))

	for _, topic := range LoanTopics {
		unsubscribers = append(unsubscribers, bus.Subscribe(topic, func(ctx context.Context, e Event) {
			payload, ok := e.Payload.(LoanEvent)
			if !ok {
				log.WarnContext(ctx, "Skipping event with unexpected payload", "topic", e.Topic, "payloadType", fmt.Sprintf("%T", e.Payload))
				return
			}
			if payload.Timestamp.IsZero() {
				payload.Timestamp = e.OccurredAt
			}
			if err := publisher.PublishLoanEvent(ctx, e.Topic, payload); err != nil {
				log.ErrorContext(ctx, "Failed to forward loan event", "topic", e.Topic, "loanID", payload.LoanID, "error", err)
			}
		}))
	}

	return func() {
		for _, unsubscribe := range unsubscribers {
			unsubscribe()
		}
	}
}
