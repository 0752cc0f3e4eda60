package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// EventPublisher publishes approval workflow events to NATS for consumption
// by downstream services (chat notifications, analytics).
//
// Subject convention: <prefix>.<event_type>
// Event types: submitted, approval_required, approved, rejected
//
// All publish operations are non-fatal. A nil publisher is valid and
// publishes nothing, so event publishing stays optional.
type EventPublisher struct {
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
}

// Event is the JSON schema published to NATS.
type Event struct {
	EventType       string         `json:"event_type"`
	ReimbursementID string         `json:"reimbursement_id"`
	ActorID         string         `json:"actor_id"`
	Recipients      []string       `json:"recipients"`
	Payload         map[string]any `json:"payload,omitempty"`
}

// NewEventPublisher connects to NATS and returns a publisher.
func NewEventPublisher(url, prefix string, log zerolog.Logger) (*EventPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("be-reimbursements"))
	if err != nil {
		return nil, fmt.Errorf("notify: nats connect: %w", err)
	}
	return &EventPublisher{conn: conn, prefix: prefix, log: log}, nil
}

// Close drains the connection.
func (p *EventPublisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	_ = p.conn.Drain()
}

// Publish emits one workflow event. Errors are logged, never returned.
func (p *EventPublisher) Publish(ctx context.Context, eventType, reimbursementID, actorID string, recipients []string, payload map[string]any) {
	if p == nil || p.conn == nil {
		return
	}

	event := &Event{
		EventType:       eventType,
		ReimbursementID: reimbursementID,
		ActorID:         actorID,
		Recipients:      recipients,
		Payload:         payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("event: failed to marshal")
		return
	}

	subject := fmt.Sprintf("%s.%s", p.prefix, eventType)
	if err := p.conn.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("reimbursement_id", reimbursementID).
			Msg("event: failed to publish (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("reimbursement_id", reimbursementID).
		Msg("event: published")
}
