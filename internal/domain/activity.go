package domain

import (
	"time"

	"example.com/footprint/internal/emissions"
)

// ActivityRecord is the canonical append-only row stored in PostgreSQL.
// CO2eGrams is always derived by the calculator, never supplied by clients,
// and the record is immutable once written.
type ActivityRecord struct {
	ID              string
	UserID          string
	Service         emissions.Service
	DurationSeconds int
	DataUsedMB      float64
	Resolution      emissions.Resolution
	CO2eGrams       float64
	CreatedAt       time.Time
}

// FootprintSnapshot is the denormalized per-user cache row. It is a
// materialized view over activities: either absent or exactly equal to
// the store aggregate at UpdatedAt-time.
type FootprintSnapshot struct {
	UserID         string
	TotalCO2eGrams float64
	ActivityCount  int
	UpdatedAt      time.Time
}

// Footprint is the read model served to clients, flagging whether the
// totals came from the cache or a live aggregation.
type Footprint struct {
	TotalCO2eGrams float64
	ActivityCount  int
	LastUpdated    time.Time
	IsCached       bool
}

// ServiceAggregate holds raw per-service sums from the store.
type ServiceAggregate struct {
	Service         emissions.Service
	CO2eGrams       float64
	DurationSeconds int
	DataUsedMB      float64
}

// ServiceBreakdownRow adds the percentage contribution to a raw aggregate.
type ServiceBreakdownRow struct {
	Service         emissions.Service
	CO2eGrams       float64
	DurationSeconds int
	DataUsedMB      float64
	Percentage      float64
}

// DailyEmissions is one calendar-day bucket, date formatted YYYY-MM-DD.
type DailyEmissions struct {
	Date           string
	TotalCO2eGrams float64
}

// UsageTotals sums duration and data volume across all of a user's
// activities, independent of the CO2e cache.
type UsageTotals struct {
	DurationSeconds int
	DataUsedMB      float64
}

// ActivityStats combines the footprint with usage totals.
type ActivityStats struct {
	TotalCO2eGrams  float64
	DurationSeconds int
	DataUsedMB      float64
	ActivityCount   int
	LastUpdated     time.Time
	IsCached        bool
}
