package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher confirm errors.
var (
	ErrConnectionRequired = errors.New("amqp connection is required")
	ErrPublisherClosed    = errors.New("publisher is closed")
	ErrPublishNacked      = errors.New("message was nacked by broker")
)

// DefaultConfirmTimeout bounds the wait for broker confirmation.
const DefaultConfirmTimeout = 5 * time.Second

// AMQPPublisher publishes events over a dedicated AMQP channel in confirm
// mode: every publish waits for the broker's ack so a silently dropped
// event surfaces as an error.
type AMQPPublisher struct {
	mu             sync.Mutex
	channel        *amqp.Channel
	exchange       string
	routingKey     string
	confirmTimeout time.Duration
	closed         bool
}

// NewAMQPPublisher opens a dedicated channel on conn and puts it in
// confirm mode.
func NewAMQPPublisher(conn *amqp.Connection, exchange, routingKey string) (*AMQPPublisher, error) {
	if conn == nil {
		return nil, ErrConnectionRequired
	}

	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()

		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}

	return &AMQPPublisher{
		channel:        ch,
		exchange:       exchange,
		routingKey:     routingKey,
		confirmTimeout: DefaultConfirmTimeout,
	}, nil
}

// Publish implements Publisher. It blocks until the broker confirms the
// message or the confirm timeout elapses.
func (p *AMQPPublisher) Publish(ctx context.Context, ev Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrPublisherClosed
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event %s: %w", ev.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.confirmTimeout)
	defer cancel()

	confirmation, err := p.channel.PublishWithDeferredConfirmWithContext(
		ctx,
		p.exchange,
		p.routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType: "application/json",
			MessageId:   ev.ID.String(),
			Type:        ev.Type,
			Timestamp:   ev.OccurredAt,
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Type, err)
	}

	acked, err := confirmation.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("confirm event %s: %w", ev.Type, err)
	}

	if !acked {
		return fmt.Errorf("event %s: %w", ev.Type, ErrPublishNacked)
	}

	return nil
}

// Close releases the publisher's channel. Further publishes fail with
// ErrPublisherClosed.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}

	p.closed = true

	return p.channel.Close()
}
