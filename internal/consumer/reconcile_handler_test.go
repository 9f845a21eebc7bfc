package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/events"
)

func TestReconcileHandlerRefreshesOwner(t *testing.T) {
	refresher := &stubRefresher{}
	handler := NewReconcileHandler(refresher)

	payload, err := json.Marshal(events.ActivityRecorded{
		ActivityID: "act-1",
		UserID:     "user-1",
		Service:    "youtube",
		CO2eGrams:  4.6,
		RecordedAt: time.Now().UTC(),
	})
	require.NoError(t, err)

	err = handler.Handle(context.Background(), Message{
		Topic:     "footprint_activity_events",
		EventType: "activity.recorded",
		Key:       "user-1",
		Payload:   payload,
	})
	require.NoError(t, err)
	require.Equal(t, []string{"user-1"}, refresher.refreshed)
}

func TestReconcileHandlerIgnoresOtherEventTypes(t *testing.T) {
	refresher := &stubRefresher{}
	handler := NewReconcileHandler(refresher)

	err := handler.Handle(context.Background(), Message{
		Topic:     "footprint_cache_events",
		EventType: "footprint.refreshed",
		Key:       "user-1",
		Payload:   json.RawMessage(`{"user_id":"user-1"}`),
	})
	require.NoError(t, err)
	require.Empty(t, refresher.refreshed)
}

func TestReconcileHandlerRejectsMissingUserID(t *testing.T) {
	refresher := &stubRefresher{}
	handler := NewReconcileHandler(refresher)

	err := handler.Handle(context.Background(), Message{
		EventType: "activity.recorded",
		Payload:   json.RawMessage(`{"activity_id":"act-2"}`),
	})
	require.Error(t, err)
	require.Empty(t, refresher.refreshed)
}

func TestReconcileHandlerPropagatesRefreshFailure(t *testing.T) {
	refresher := &stubRefresher{err: errors.New("postgres down")}
	handler := NewReconcileHandler(refresher)

	err := handler.Handle(context.Background(), Message{
		EventType: "activity.recorded",
		Payload:   json.RawMessage(`{"activity_id":"act-3","user_id":"user-3"}`),
	})
	require.ErrorIs(t, err, refresher.err)
}

type stubRefresher struct {
	refreshed []string
	err       error
}

func (s *stubRefresher) RefreshFootprint(_ context.Context, userID string) (*domain.FootprintSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.refreshed = append(s.refreshed, userID)
	return &domain.FootprintSnapshot{UserID: userID, UpdatedAt: time.Now().UTC()}, nil
}
