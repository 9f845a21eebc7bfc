// Package postgres provides pgx-backed persistence for the activity log
// and the footprint cache.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
	"example.com/footprint/internal/events"
	"example.com/footprint/internal/observability"
)

// Repository provides Postgres-backed persistence for activities, the
// footprint cache, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts the activity and records an outbox event inside a single
// transaction. Activities are never updated after this point.
func (r *Repository) Append(ctx context.Context, record domain.ActivityRecord) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const insertActivity = `INSERT INTO activities (activity_id, user_id, service, duration_seconds, data_used_mb, resolution, co2e_grams, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`

	_, err = tx.Exec(ctx, insertActivity,
		record.ID,
		record.UserID,
		string(record.Service),
		record.DurationSeconds,
		record.DataUsedMB,
		nullIfEmpty(string(record.Resolution)),
		record.CO2eGrams,
		record.CreatedAt,
	)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, "activity.recorded", record.ID, record.UserID, events.ActivityRecorded{
		ActivityID:      record.ID,
		UserID:          record.UserID,
		Service:         string(record.Service),
		DurationSeconds: record.DurationSeconds,
		DataUsedMB:      record.DataUsedMB,
		Resolution:      string(record.Resolution),
		CO2eGrams:       record.CO2eGrams,
		RecordedAt:      record.CreatedAt,
	}); err != nil {
		return err
	}

	err = tx.Commit(ctx)
	if err != nil {
		return err
	}
	observability.RecordActivityPersisted(record.CreatedAt)
	return nil
}

// AggregateTotals sums CO2e and counts activities over the full log.
func (r *Repository) AggregateTotals(ctx context.Context, userID string) (float64, int, error) {
	const query = `SELECT COALESCE(SUM(co2e_grams), 0), COUNT(*) FROM activities WHERE user_id=$1`

	var total float64
	var count int
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&total, &count); err != nil {
		return 0, 0, err
	}
	return total, count, nil
}

// AggregateByService groups the [start, end) window by service, largest
// emitter first.
func (r *Repository) AggregateByService(ctx context.Context, userID string, start, end time.Time) ([]domain.ServiceAggregate, error) {
	const query = `SELECT service, COALESCE(SUM(co2e_grams), 0), COALESCE(SUM(duration_seconds), 0), COALESCE(SUM(data_used_mb), 0)
        FROM activities
        WHERE user_id=$1 AND created_at >= $2 AND created_at < $3
        GROUP BY service
        ORDER BY SUM(co2e_grams) DESC, service`

	rows, err := r.pool.Query(ctx, query, userID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	aggregates := make([]domain.ServiceAggregate, 0)
	for rows.Next() {
		var agg domain.ServiceAggregate
		var service string
		if err := rows.Scan(&service, &agg.CO2eGrams, &agg.DurationSeconds, &agg.DataUsedMB); err != nil {
			return nil, err
		}
		agg.Service = domainService(service)
		aggregates = append(aggregates, agg)
	}
	return aggregates, rows.Err()
}

// AggregateByDay buckets the [start, end) window by calendar day,
// ascending. Days are cut at the window's UTC offset; Go zone names such
// as "Local" are meaningless to Postgres, so the offset is passed as
// seconds instead.
func (r *Repository) AggregateByDay(ctx context.Context, userID string, start, end time.Time) ([]domain.DailyEmissions, error) {
	const query = `SELECT to_char(created_at AT TIME ZONE 'UTC' + make_interval(secs => $4), 'YYYY-MM-DD') AS day, COALESCE(SUM(co2e_grams), 0)
        FROM activities
        WHERE user_id=$1 AND created_at >= $2 AND created_at < $3
        GROUP BY day
        ORDER BY day`

	_, offsetSeconds := start.Zone()
	rows, err := r.pool.Query(ctx, query, userID, start, end, float64(offsetSeconds))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	buckets := make([]domain.DailyEmissions, 0)
	for rows.Next() {
		var bucket domain.DailyEmissions
		if err := rows.Scan(&bucket.Date, &bucket.TotalCO2eGrams); err != nil {
			return nil, err
		}
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}

// AggregateUsage sums duration and data transferred over the full log.
func (r *Repository) AggregateUsage(ctx context.Context, userID string) (domain.UsageTotals, error) {
	const query = `SELECT COALESCE(SUM(duration_seconds), 0), COALESCE(SUM(data_used_mb), 0) FROM activities WHERE user_id=$1`

	var usage domain.UsageTotals
	if err := r.pool.QueryRow(ctx, query, userID).Scan(&usage.DurationSeconds, &usage.DataUsedMB); err != nil {
		return domain.UsageTotals{}, err
	}
	return usage, nil
}

// UserExists reports whether the owning user row is present.
func (r *Repository) UserExists(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT 1 FROM users WHERE user_id=$1`

	var one int
	err := r.pool.QueryRow(ctx, query, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Upsert replaces the user's cache row with the supplied snapshot and
// records a footprint.refreshed outbox event in the same transaction.
// Last writer wins; the snapshot was derived from the durable log.
func (r *Repository) Upsert(ctx context.Context, snapshot domain.FootprintSnapshot) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	const upsert = `INSERT INTO footprint_cache (user_id, total_co2e_grams, activity_count, updated_at)
        VALUES ($1,$2,$3,$4)
        ON CONFLICT (user_id) DO UPDATE
        SET total_co2e_grams = EXCLUDED.total_co2e_grams,
            activity_count = EXCLUDED.activity_count,
            updated_at = EXCLUDED.updated_at`

	_, err = tx.Exec(ctx, upsert, snapshot.UserID, snapshot.TotalCO2eGrams, snapshot.ActivityCount, snapshot.UpdatedAt)
	if err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, "footprint.refreshed", snapshot.UserID, snapshot.UserID, events.FootprintRefreshed{
		UserID:         snapshot.UserID,
		TotalCO2eGrams: snapshot.TotalCO2eGrams,
		ActivityCount:  snapshot.ActivityCount,
		RefreshedAt:    snapshot.UpdatedAt,
	}); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// Read fetches the user's cache row, nil when absent.
func (r *Repository) Read(ctx context.Context, userID string) (*domain.FootprintSnapshot, error) {
	const query = `SELECT user_id, total_co2e_grams, activity_count, updated_at FROM footprint_cache WHERE user_id=$1`

	var snapshot domain.FootprintSnapshot
	err := r.pool.QueryRow(ctx, query, userID).Scan(&snapshot.UserID, &snapshot.TotalCO2eGrams, &snapshot.ActivityCount, &snapshot.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// EnsureUser inserts the user row if it does not exist yet.
func (r *Repository) EnsureUser(ctx context.Context, userID string) error {
	const stmt = `INSERT INTO users (user_id, created_at) VALUES ($1, NOW()) ON CONFLICT (user_id) DO NOTHING`
	_, err := r.pool.Exec(ctx, stmt, userID)
	return err
}

func insertOutbox(ctx context.Context, tx pgx.Tx, eventType, aggregateID, userID string, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	meta, ok := eventCatalog[eventType]
	if !ok {
		return fmt.Errorf("unknown event type: %s", eventType)
	}

	// Refresh events legitimately repeat per user, so only event types
	// with unique aggregates carry a dedupe key.
	var dedupeKey interface{}
	if meta.Dedupe {
		dedupeKey = fmt.Sprintf("%s:%s", aggregateID, eventType)
	}

	const stmt = `INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING`

	_, err = tx.Exec(ctx, stmt,
		meta.AggregateType,
		aggregateID,
		eventType,
		meta.Topic,
		meta.SchemaSubject,
		userID,
		body,
		dedupeKey,
	)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func domainService(raw string) emissions.Service {
	return emissions.Service(raw)
}

// EventMetadata describes how to route an outbox event. Dedupe marks
// event types whose aggregate produces each event at most once.
type EventMetadata struct {
	AggregateType string
	Topic         string
	SchemaSubject string
	Dedupe        bool
}

var eventCatalog = map[string]EventMetadata{
	"activity.recorded": {
		AggregateType: "activity",
		Topic:         "footprint_activity_events",
		SchemaSubject: "footprint_activity_events-value",
		Dedupe:        true,
	},
	"footprint.refreshed": {
		AggregateType: "footprint",
		Topic:         "footprint_cache_events",
		SchemaSubject: "footprint_cache_events-value",
	},
}
