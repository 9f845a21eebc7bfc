package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/events"
)

// FootprintRefresher re-derives one user's cache row from the activity log.
// *domain.Service satisfies it.
type FootprintRefresher interface {
	RefreshFootprint(ctx context.Context, userID string) (*domain.FootprintSnapshot, error)
}

// ReconcileHandler rebuilds footprint cache rows from consumed activity
// events. It converges the cache after any synchronous refresh that was
// lost to a partial failure; rebuilding an already-fresh row is a no-op
// because the refresh recomputes from the durable log.
type ReconcileHandler struct {
	refresher FootprintRefresher
}

// NewReconcileHandler constructs a handler around the provided refresher.
func NewReconcileHandler(refresher FootprintRefresher) *ReconcileHandler {
	return &ReconcileHandler{refresher: refresher}
}

// Handle refreshes the owning user's footprint for activity.recorded
// events and ignores everything else.
func (h *ReconcileHandler) Handle(ctx context.Context, msg Message) error {
	if msg.EventType != "activity.recorded" {
		return nil
	}

	var event events.ActivityRecorded
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		return fmt.Errorf("decode activity.recorded payload: %w", err)
	}
	if event.UserID == "" {
		return fmt.Errorf("activity.recorded event %s missing user_id", event.ActivityID)
	}

	if _, err := h.refresher.RefreshFootprint(ctx, event.UserID); err != nil {
		return err
	}
	reconciledCounter.Inc()
	return nil
}
