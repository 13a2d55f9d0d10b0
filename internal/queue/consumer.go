package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/akabemail-hash/asutkosks/internal/logging"
)

// AuditLogName is the file, under the consumer's log directory, that
// receives one JSON line per recorded visit.
const AuditLogName = "visits.log"

// Consumer drains visit.recorded and appends each event to an audit log.
type Consumer struct {
	url    string
	logDir string
}

func NewConsumer(url, logDir string) *Consumer {
	return &Consumer{url: url, logDir: logDir}
}

// Run dials the broker and consumes until ctx is cancelled, reconnecting
// with exponential backoff capped at 30s.
func (c *Consumer) Run(ctx context.Context) error {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(c.url)
		if err != nil {
			logging.Warn().Err(err).Dur("retry_in", backoff).Msg("visit-consumer: dial failed")
			if !sleep(ctx, backoff) {
				return ctx.Err()
			}
			backoff = min(backoff*2, 30*time.Second)
			continue
		}
		backoff = time.Second

		err = c.consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logging.Warn().Err(err).Msg("visit-consumer: consume loop ended; reconnecting")
		if !sleep(ctx, 2*time.Second) {
			return ctx.Err()
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func (c *Consumer) consume(ctx context.Context, conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logging.Warn().Err(err).Msg("visit-consumer: set QoS failed")
	}
	if _, err := ch.QueueDeclare(VisitRecordedQueue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	msgs, err := ch.Consume(VisitRecordedQueue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("deliveries channel closed")
			}
			if err := c.handle(d.Body); err != nil {
				logging.Error().Err(err).Msg("visit-consumer: handle message failed")
				// reject without requeue so a bad payload cannot spin
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}

func (c *Consumer) handle(body []byte) error {
	var ev VisitRecordedEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := os.MkdirAll(c.logDir, 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(c.logDir, AuditLogName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	writeAudit(f, ev)
	return nil
}

func writeAudit(w io.Writer, ev VisitRecordedEvent) {
	l := zerolog.New(w)
	e := l.Info().
		Str("recorded_at", ev.RecordedAt).
		Uint64("visit_id", ev.VisitID).
		Uint64("kiosk_id", ev.KioskID).
		Uint64("user_id", ev.UserID).
		Str("username", ev.Username).
		Str("visit_date", ev.VisitDate).
		Str("visit_time", ev.VisitTime).
		Uint64("visit_type_id", ev.VisitTypeID).
		Int("photos", ev.PhotoCount)
	if ev.ProblemTypeID != nil {
		e = e.Uint64("problem_type_id", *ev.ProblemTypeID)
	}
	e.Msg("visit recorded")
}
