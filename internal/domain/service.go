// Package domain defines the business logic for the footprint service.
package domain

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/observability"
)

// ActivityRepository captures persistence operations over the append-only
// activity log.
type ActivityRepository interface {
	Append(ctx context.Context, record ActivityRecord) error
	AggregateTotals(ctx context.Context, userID string) (totalCO2e float64, count int, err error)
	AggregateByService(ctx context.Context, userID string, start, end time.Time) ([]ServiceAggregate, error)
	AggregateByDay(ctx context.Context, userID string, start, end time.Time) ([]DailyEmissions, error)
	AggregateUsage(ctx context.Context, userID string) (UsageTotals, error)
	UserExists(ctx context.Context, userID string) (bool, error)
}

// FootprintCacheRepository stores one denormalized snapshot per user.
// Read never computes; Upsert is last-writer-wins.
type FootprintCacheRepository interface {
	Upsert(ctx context.Context, snapshot FootprintSnapshot) error
	Read(ctx context.Context, userID string) (*FootprintSnapshot, error)
}

// Service orchestrates emission calculation, the activity log, and the
// footprint cache.
type Service struct {
	activities ActivityRepository
	cache      FootprintCacheRepository
}

// NewService constructs a Service.
func NewService(activities ActivityRepository, cache FootprintCacheRepository) *Service {
	return &Service{activities: activities, cache: cache}
}

// RecordActivityInput captures the payload from the API layer. CO2e is
// deliberately absent: clients never supply it.
type RecordActivityInput struct {
	UserID          string
	Service         emissions.Service
	DurationSeconds int
	DataUsedMB      float64
	Resolution      emissions.Resolution
}

// RecordActivity derives CO2e, appends the record, and refreshes the
// owner's footprint cache. Validation failures surface before anything
// is written. A cache refresh failure after a successful append leaves
// the cache transiently stale; the activity log stays authoritative and
// the next refresh converges it.
func (s *Service) RecordActivity(ctx context.Context, input RecordActivityInput) (*ActivityRecord, error) {
	grams, err := emissions.Compute(emissions.Usage{
		Service:         input.Service,
		DurationSeconds: input.DurationSeconds,
		DataUsedMB:      input.DataUsedMB,
		Resolution:      input.Resolution,
	})
	if err != nil {
		return nil, err
	}

	exists, err := s.activities.UserExists(ctx, input.UserID)
	if err != nil {
		return nil, wrapStorage("user lookup", err)
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	record := ActivityRecord{
		ID:              uuid.NewString(),
		UserID:          input.UserID,
		Service:         input.Service,
		DurationSeconds: input.DurationSeconds,
		DataUsedMB:      input.DataUsedMB,
		Resolution:      input.Resolution,
		CO2eGrams:       grams,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.activities.Append(ctx, record); err != nil {
		return nil, wrapStorage("activity append", err)
	}

	if _, err := s.RefreshFootprint(ctx, input.UserID); err != nil {
		log.Printf("footprint cache refresh failed for user %s: %v", input.UserID, err)
		observability.RecordCacheRefreshFailure()
	}

	return &record, nil
}

// RefreshFootprint recomputes the user's totals from the activity log and
// upserts the cache row. It never increments the previous cache value, so
// concurrent refreshes are last-writer-wins against the store's current
// aggregate and rerunning it is idempotent.
func (s *Service) RefreshFootprint(ctx context.Context, userID string) (*FootprintSnapshot, error) {
	total, count, err := s.activities.AggregateTotals(ctx, userID)
	if err != nil {
		return nil, wrapStorage("footprint aggregation", err)
	}

	snapshot := FootprintSnapshot{
		UserID:         userID,
		TotalCO2eGrams: total,
		ActivityCount:  count,
		UpdatedAt:      time.Now().UTC(),
	}
	if err := s.cache.Upsert(ctx, snapshot); err != nil {
		return nil, wrapStorage("footprint cache upsert", err)
	}
	observability.RecordCacheRefreshed(snapshot.UpdatedAt)
	return &snapshot, nil
}

// GetUserFootprint prefers the cache and falls back to a live aggregation
// when no snapshot exists. The fallback never writes the cache.
func (s *Service) GetUserFootprint(ctx context.Context, userID string) (*Footprint, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	snapshot, err := s.cache.Read(ctx, userID)
	if err != nil {
		return nil, wrapStorage("footprint cache read", err)
	}
	if snapshot != nil {
		return &Footprint{
			TotalCO2eGrams: snapshot.TotalCO2eGrams,
			ActivityCount:  snapshot.ActivityCount,
			LastUpdated:    snapshot.UpdatedAt,
			IsCached:       true,
		}, nil
	}

	total, count, err := s.activities.AggregateTotals(ctx, userID)
	if err != nil {
		return nil, wrapStorage("footprint aggregation", err)
	}
	return &Footprint{
		TotalCO2eGrams: total,
		ActivityCount:  count,
		LastUpdated:    time.Now().UTC(),
		IsCached:       false,
	}, nil
}

// GetServiceBreakdown aggregates the window live from the activity log
// and derives percentage contributions. An empty window yields an empty
// slice, and a zero total yields zero percentages.
func (s *Service) GetServiceBreakdown(ctx context.Context, userID string, r Range) ([]ServiceBreakdownRow, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	start, end := r.Window(time.Now())
	aggregates, err := s.activities.AggregateByService(ctx, userID, start, end)
	if err != nil {
		return nil, wrapStorage("service breakdown", err)
	}

	var total float64
	for _, agg := range aggregates {
		total += agg.CO2eGrams
	}

	rows := make([]ServiceBreakdownRow, 0, len(aggregates))
	for _, agg := range aggregates {
		percentage := 0.0
		if total > 0 {
			percentage = agg.CO2eGrams / total * 100
		}
		rows = append(rows, ServiceBreakdownRow{
			Service:         agg.Service,
			CO2eGrams:       agg.CO2eGrams,
			DurationSeconds: agg.DurationSeconds,
			DataUsedMB:      agg.DataUsedMB,
			Percentage:      percentage,
		})
	}
	return rows, nil
}

// GetDailyEmissions buckets the window by calendar day, ascending.
func (s *Service) GetDailyEmissions(ctx context.Context, userID string, r Range) ([]DailyEmissions, error) {
	if err := s.requireUser(ctx, userID); err != nil {
		return nil, err
	}

	start, end := r.Window(time.Now())
	buckets, err := s.activities.AggregateByDay(ctx, userID, start, end)
	if err != nil {
		return nil, wrapStorage("daily emissions", err)
	}
	return buckets, nil
}

// GetActivityStats merges the footprint with all-time usage totals.
func (s *Service) GetActivityStats(ctx context.Context, userID string) (*ActivityStats, error) {
	footprint, err := s.GetUserFootprint(ctx, userID)
	if err != nil {
		return nil, err
	}

	usage, err := s.activities.AggregateUsage(ctx, userID)
	if err != nil {
		return nil, wrapStorage("usage aggregation", err)
	}

	return &ActivityStats{
		TotalCO2eGrams:  footprint.TotalCO2eGrams,
		DurationSeconds: usage.DurationSeconds,
		DataUsedMB:      usage.DataUsedMB,
		ActivityCount:   footprint.ActivityCount,
		LastUpdated:     footprint.LastUpdated,
		IsCached:        footprint.IsCached,
	}, nil
}

func (s *Service) requireUser(ctx context.Context, userID string) error {
	exists, err := s.activities.UserExists(ctx, userID)
	if err != nil {
		return wrapStorage("user lookup", err)
	}
	if !exists {
		return ErrUserNotFound
	}
	return nil
}
