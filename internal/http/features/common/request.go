package common

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/tendant/seatledger/internal/events"
	"github.com/tendant/seatledger/internal/http/middleware"
	"github.com/tendant/seatledger/internal/httputil"
	"github.com/tendant/seatledger/pkg/domain"
)

// Actor returns the authenticated user, writing 401 when the request did not
// pass through the auth middleware.
func Actor(w http.ResponseWriter, r *http.Request) (*domain.User, bool) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		httputil.WriteError(w, nil, domain.ErrUnauthorized)
		return nil, false
	}
	return user, true
}

// Emitter publishes domain events after a successful write. A failed publish
// is logged and never fails the request.
type Emitter struct {
	publisher events.Publisher
	logger    *slog.Logger
}

// NewEmitter creates an emitter. A nil publisher discards events.
func NewEmitter(publisher events.Publisher, logger *slog.Logger) *Emitter {
	if publisher == nil {
		publisher = events.Noop{}
	}
	return &Emitter{publisher: publisher, logger: logger}
}

// Emit publishes e.
func (em *Emitter) Emit(ctx context.Context, e events.Event) {
	if err := em.publisher.Publish(ctx, e); err != nil && em.logger != nil {
		em.logger.Warn("event publish failed",
			"subject", e.Subject,
			"tenant_id", e.TenantID,
			"error", err,
		)
	}
}
