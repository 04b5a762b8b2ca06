// Package events publishes domain events about tenants and seats to NATS.
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

// Event subjects
const (
	SubjectTenantCreated       = "seatledger.tenant.created"
	SubjectTenantUpdated       = "seatledger.tenant.updated"
	SubjectTenantDeactivated   = "seatledger.tenant.deactivated"
	SubjectSubscriptionCreated = "seatledger.subscription.created"
	SubjectSubscriptionUpdated = "seatledger.subscription.updated"
	SubjectMemberAdded         = "seatledger.subscription.member_added"
	SubjectMemberRemoved       = "seatledger.subscription.member_removed"
)

// Event is the envelope published for every change.
type Event struct {
	ID             uuid.UUID  `json:"id"`
	Subject        string     `json:"subject"`
	ActorID        uuid.UUID  `json:"actor_id"`
	TenantID       uuid.UUID  `json:"tenant_id"`
	SubscriptionID *uuid.UUID `json:"subscription_id,omitempty"`
	UserID         *uuid.UUID `json:"user_id,omitempty"`
	Timestamp      time.Time  `json:"timestamp"`
}

// Publisher sends events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close()
}

// Recorder observes publish results.
type Recorder interface {
	ObserveEvent(subject string, err error)
}

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close()                               {}

// Encode fills in the envelope defaults and marshals the event.
func Encode(e *Event) ([]byte, error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return data, nil
}

// NATSPublisher publishes events on core NATS subjects.
type NATSPublisher struct {
	conn     *nats.Conn
	logger   *slog.Logger
	recorder Recorder
}

// Connect dials the broker. The connection retries in the background, so a
// broker that is down at startup does not fail the process.
func Connect(url string, logger *slog.Logger, recorder Recorder) (*NATSPublisher, error) {
	opts := []nats.Option{
		nats.Name("seatledger"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			logger.Error("nats error", "error", err)
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			logger.Info("nats connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &NATSPublisher{conn: conn, logger: logger, recorder: recorder}, nil
}

// Publish sends e on its subject.
func (p *NATSPublisher) Publish(ctx context.Context, e Event) error {
	err := p.publish(ctx, &e)
	if p.recorder != nil {
		p.recorder.ObserveEvent(e.Subject, err)
	}
	return err
}

func (p *NATSPublisher) publish(ctx context.Context, e *Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := Encode(e)
	if err != nil {
		return err
	}
	if err := p.conn.Publish(e.Subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", e.Subject, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection.
func (p *NATSPublisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.logger.Warn("nats drain failed", "error", err)
		p.conn.Close()
	}
}
