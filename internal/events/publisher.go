// Package events публикует события журнала начислений во внешнюю очередь.
// Публикация — побочный канал: её сбой не влияет на ответ сервиса.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/mmeshcher/point-service/internal/model"
)

// EventPointsAdded — тип события о новой записи в журнале.
const EventPointsAdded = "points.added"

// PointsAdded — тело сообщения о новой записи в журнале.
type PointsAdded struct {
	MessageID   string    `json:"messageId"`
	Type        string    `json:"type"`
	ID          int64     `json:"id"`
	UserID      int64     `json:"userId"`
	Points      int64     `json:"points"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Noop ничего не публикует. Используется, когда очередь не настроена.
type Noop struct{}

// PublishPointsAdded ничего не делает.
func (Noop) PublishPointsAdded(context.Context, model.PointEntry) error { return nil }

// Close ничего не делает.
func (Noop) Close() error { return nil }

// AMQPPublisher публикует события в очередь RabbitMQ.
type AMQPPublisher struct {
	queue string

	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
}

// NewAMQPPublisher подключается к брокеру и объявляет durable-очередь.
func NewAMQPPublisher(url, queue string) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &AMQPPublisher{
		queue:   queue,
		conn:    conn,
		channel: ch,
	}, nil
}

// PublishPointsAdded отправляет событие о созданной записи.
func (p *AMQPPublisher) PublishPointsAdded(ctx context.Context, entry model.PointEntry) error {
	msg, err := buildMessage(entry, time.Now().UTC())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel == nil {
		return fmt.Errorf("publisher closed")
	}

	if err := p.channel.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("publish %s: %w", EventPointsAdded, err)
	}
	return nil
}

// Close закрывает канал и соединение с брокером.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		p.channel.Close()
		p.channel = nil
	}
	if p.conn != nil {
		err := p.conn.Close()
		p.conn = nil
		return err
	}
	return nil
}

func buildMessage(entry model.PointEntry, now time.Time) (amqp.Publishing, error) {
	event := PointsAdded{
		MessageID:   uuid.NewString(),
		Type:        EventPointsAdded,
		ID:          entry.ID,
		UserID:      entry.UserID,
		Points:      entry.Points,
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt,
		PublishedAt: now,
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal event: %w", err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.MessageID,
		Type:         EventPointsAdded,
		Timestamp:    now,
		Body:         body,
	}, nil
}
