// Package events announces accepted conversion jobs to other services.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const DefaultSubject = "voicebot.conversion.submitted"

// flushTimeout bounds the server round trip when the caller's context has no
// deadline of its own.
const flushTimeout = 5 * time.Second

// ConversionSubmitted is published once the inference API accepts a job, so
// the webhook handler can match the job id to a chat.
type ConversionSubmitted struct {
	EventID   string    `json:"event_id"`
	JobID     string    `json:"job_id"`
	ChatID    int64     `json:"chat_id"`
	ModelID   string    `json:"model_id"`
	VoiceName string    `json:"voice_name"`
	Pitch     int       `json:"pitch"`
	Duration  int       `json:"duration"`
	AudioURL  string    `json:"audio_url"`
	Submitted time.Time `json:"submitted_at"`
}

type Publisher interface {
	PublishSubmitted(ctx context.Context, event ConversionSubmitted) error
}

type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	log     *slog.Logger
}

// Connect dials the NATS server at url.
func Connect(url, subject string, log *slog.Logger) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("voicebot"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return NewNATSPublisher(conn, subject, log), nil
}

func NewNATSPublisher(conn *nats.Conn, subject string, log *slog.Logger) *NATSPublisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &NATSPublisher{conn: conn, subject: subject, log: log}
}

func (p *NATSPublisher) PublishSubmitted(ctx context.Context, event ConversionSubmitted) error {
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}
	if event.Submitted.IsZero() {
		event.Submitted = time.Now().UTC()
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := p.conn.Publish(p.subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", p.subject, err)
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush %s: %w", p.subject, err)
	}

	p.log.Debug("event published", "subject", p.subject, "job_id", event.JobID, "chat_id", event.ChatID)
	return nil
}

// Close drains pending events before closing the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.log.Warn("drain nats connection", "err", err)
		p.conn.Close()
	}
}

// Nop discards every event.
type Nop struct{}

func (Nop) PublishSubmitted(context.Context, ConversionSubmitted) error {
	return nil
}
