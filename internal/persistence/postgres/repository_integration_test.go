//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/footprint/internal/domain"
)

func TestRepositoryAppendAndAggregate(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("footprint"),
		postgrescontainer.WithUsername("footprint"),
		postgrescontainer.WithPassword("footprint"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	repo := NewRepository(pool)

	userID := uuid.NewString()
	require.NoError(t, repo.EnsureUser(ctx, userID))

	exists, err := repo.UserExists(ctx, userID)
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = repo.UserExists(ctx, uuid.NewString())
	require.NoError(t, err)
	require.False(t, exists)

	now := time.Now().UTC().Truncate(time.Microsecond)
	records := []domain.ActivityRecord{
		{
			ID:              uuid.NewString(),
			UserID:          userID,
			Service:         "youtube",
			DurationSeconds: 600,
			Resolution:      "HD",
			CO2eGrams:       4.6,
			CreatedAt:       now,
		},
		{
			ID:         uuid.NewString(),
			UserID:     userID,
			Service:    "google_drive",
			DataUsedMB: 100,
			CO2eGrams:  39,
			CreatedAt:  now.Add(time.Minute),
		},
	}
	for _, record := range records {
		require.NoError(t, repo.Append(ctx, record))
	}

	total, count, err := repo.AggregateTotals(ctx, userID)
	require.NoError(t, err)
	require.InDelta(t, 43.6, total, 1e-9)
	require.Equal(t, 2, count)

	aggregates, err := repo.AggregateByService(ctx, userID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, aggregates, 2)
	require.Equal(t, "google_drive", string(aggregates[0].Service), "largest emitter first")

	usage, err := repo.AggregateUsage(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, 600, usage.DurationSeconds)
	require.InDelta(t, 100, usage.DataUsedMB, 1e-9)

	buckets, err := repo.AggregateByDay(ctx, userID, now.Add(-time.Hour), now.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.InDelta(t, 43.6, buckets[0].TotalCO2eGrams, 1e-9)

	// Appends must stage outbox events in the same transaction.
	var outboxCount int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type = 'activity.recorded' AND partition_key = $1`,
		userID,
	).Scan(&outboxCount)
	require.NoError(t, err)
	require.Equal(t, 2, outboxCount)

	// Replaying an already-staged event must be a no-op, not a second row.
	tag, err := pool.Exec(ctx,
		`INSERT INTO outbox (aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
         VALUES ('activity', $1, 'activity.recorded', 'footprint_activity_events', 'footprint_activity_events-value', $2, '{}', $3)
         ON CONFLICT (dedupe_key) WHERE dedupe_key IS NOT NULL DO NOTHING`,
		records[0].ID, userID, records[0].ID+":activity.recorded",
	)
	require.NoError(t, err)
	require.EqualValues(t, 0, tag.RowsAffected())
}

func TestAggregateByDayHonorsWindowOffset(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("footprint"),
		postgrescontainer.WithUsername("footprint"),
		postgrescontainer.WithPassword("footprint"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	repo := NewRepository(pool)

	userID := uuid.NewString()
	require.NoError(t, repo.EnsureUser(ctx, userID))

	// Late evening UTC on June 18 is already June 19 at UTC+5.
	lateEvening := time.Date(2025, time.June, 18, 22, 30, 0, 0, time.UTC)
	morning := time.Date(2025, time.June, 18, 10, 0, 0, 0, time.UTC)
	for _, record := range []domain.ActivityRecord{
		{ID: uuid.NewString(), UserID: userID, Service: "spotify", DurationSeconds: 3600, CO2eGrams: 1.5, CreatedAt: lateEvening},
		{ID: uuid.NewString(), UserID: userID, Service: "web_browsing", DurationSeconds: 600, CO2eGrams: 1.8, CreatedAt: morning},
	} {
		require.NoError(t, repo.Append(ctx, record))
	}

	offset := time.FixedZone("UTC+5", 5*3600)
	start := time.Date(2025, time.June, 19, 0, 0, 0, 0, offset)
	end := start.AddDate(0, 0, 1)

	buckets, err := repo.AggregateByDay(ctx, userID, start, end)
	require.NoError(t, err)
	require.Len(t, buckets, 1)
	require.Equal(t, "2025-06-19", buckets[0].Date)
	require.InDelta(t, 1.5, buckets[0].TotalCO2eGrams, 1e-9)

	// The process-local zone must never reach Postgres as a zone name.
	local := time.Date(2025, time.June, 18, 0, 0, 0, 0, time.Local)
	_, err = repo.AggregateByDay(ctx, userID, local, local.AddDate(0, 0, 1))
	require.NoError(t, err)
}

func TestFootprintCacheUpsertAndRead(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("footprint"),
		postgrescontainer.WithUsername("footprint"),
		postgrescontainer.WithPassword("footprint"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	runMigrations(t, ctx, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	repo := NewRepository(pool)

	userID := uuid.NewString()
	require.NoError(t, repo.EnsureUser(ctx, userID))

	missing, err := repo.Read(ctx, userID)
	require.NoError(t, err)
	require.Nil(t, missing)

	first := domain.FootprintSnapshot{
		UserID:         userID,
		TotalCO2eGrams: 10,
		ActivityCount:  1,
		UpdatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, repo.Upsert(ctx, first))

	second := first
	second.TotalCO2eGrams = 25.5
	second.ActivityCount = 2
	second.UpdatedAt = first.UpdatedAt.Add(time.Second)
	require.NoError(t, repo.Upsert(ctx, second))

	stored, err := repo.Read(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.InDelta(t, 25.5, stored.TotalCO2eGrams, 1e-9)
	require.Equal(t, 2, stored.ActivityCount)

	// Repeated refreshes for one user each stage their own event.
	var refreshEvents int
	err = pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM outbox WHERE event_type = 'footprint.refreshed' AND partition_key = $1`,
		userID,
	).Scan(&refreshEvents)
	require.NoError(t, err)
	require.Equal(t, 2, refreshEvents)
}

func runMigrations(t *testing.T, ctx context.Context, connStr string) {
	files := []string{
		"../../../db/postgres/migrations/0001_init.up.sql",
		"../../../db/postgres/migrations/0002_outbox_dlq.up.sql",
	}

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	defer pool.Close()

	for _, rel := range files {
		path := resolvePath(t, rel)
		contents, readErr := os.ReadFile(path)
		require.NoError(t, readErr)

		_, execErr := pool.Exec(ctx, string(contents))
		require.NoError(t, execErr)
	}
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
