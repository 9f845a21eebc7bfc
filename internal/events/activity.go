// Package events defines event payloads published by the footprint service.
package events

import "time"

// ActivityRecorded is emitted when a new activity passes validation and
// is appended to the log.
type ActivityRecorded struct {
	ActivityID      string    `json:"activity_id"`
	UserID          string    `json:"user_id"`
	Service         string    `json:"service"`
	DurationSeconds int       `json:"duration_seconds"`
	DataUsedMB      float64   `json:"data_used_mb"`
	Resolution      string    `json:"resolution,omitempty"`
	CO2eGrams       float64   `json:"co2e_grams"`
	RecordedAt      time.Time `json:"recorded_at"`
}

// FootprintRefreshed is emitted after the per-user cache row is rebuilt
// from the activity log.
type FootprintRefreshed struct {
	UserID         string    `json:"user_id"`
	TotalCO2eGrams float64   `json:"total_co2e_grams"`
	ActivityCount  int       `json:"activity_count"`
	RefreshedAt    time.Time `json:"refreshed_at"`
}
