// Package service holds the outbound integrations: geocoding, photo storage
// and domain event publishing.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/akabemail-hash/asutkosks/internal/logging"
	"github.com/akabemail-hash/asutkosks/internal/metrics"
	"github.com/akabemail-hash/asutkosks/internal/queue"
)

// VisitPublisher publishes visit.recorded events to RabbitMQ.  The
// connection is opened lazily and re-dialled after any failure.
type VisitPublisher struct {
	url string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewVisitPublisher(url string) *VisitPublisher {
	return &VisitPublisher{url: url}
}

func (p *VisitPublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	// Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(queue.VisitRecordedQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *VisitPublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// PublishVisitRecorded sends ev as a persistent JSON message.  Errors are
// returned so callers may ignore them without failing the request.
func (p *VisitPublisher) PublishVisitRecorded(ctx context.Context, ev queue.VisitRecordedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		metrics.VisitEventsPublished.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("rabbitmq: connect failed")
		return err
	}
	err = ch.PublishWithContext(ctx, "", queue.VisitRecordedQueue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		p.reset()
		metrics.VisitEventsPublished.WithLabelValues("error").Inc()
		logging.Ctx(ctx).Warn().Err(err).Msg("rabbitmq: publish failed")
		return err
	}
	metrics.VisitEventsPublished.WithLabelValues("ok").Inc()
	return nil
}

// Close releases the broker connection.
func (p *VisitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
	return nil
}

// ErrEventsDisabled is returned by NopPublisher.
var ErrEventsDisabled = errors.New("event publishing disabled")

// NopPublisher drops events; used when EVENTS_ENABLED is off.
type NopPublisher struct{}

func (NopPublisher) PublishVisitRecorded(context.Context, queue.VisitRecordedEvent) error {
	return ErrEventsDisabled
}
