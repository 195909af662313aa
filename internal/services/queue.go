package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// SMSMessage is the payload published for the external SMS worker
type SMSMessage struct {
	To       string    `json:"to"`
	Body     string    `json:"body"`
	QueuedAt time.Time `json:"queued_at"`
}

// QueueSender hands SMS off to RabbitMQ instead of calling a provider
type QueueSender struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	mu       sync.Mutex // amqp.Channel is not safe for concurrent publishes
}

// NewQueueSender connects to RabbitMQ and declares the fanout exchange
func NewQueueSender(amqpURL, exchange string) (*QueueSender, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"fanout",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}

	return &QueueSender{conn: conn, channel: ch, exchange: exchange}, nil
}

// Send publishes the SMS to the exchange
func (q *QueueSender) Send(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(SMSMessage{To: to, Body: body, QueuedAt: time.Now()})
	if err != nil {
		return fmt.Errorf("failed to marshal SMS: %w", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	return q.channel.Publish(
		q.exchange,
		"",
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         payload,
		},
	)
}

// Close closes the RabbitMQ connection and channel
func (q *QueueSender) Close() error {
	if q.channel != nil {
		q.channel.Close()
	}
	if q.conn != nil {
		return q.conn.Close()
	}
	return nil
}
