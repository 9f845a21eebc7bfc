// Package api exposes HTTP handlers for the footprint service.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/footprint/internal/auth"
	"example.com/footprint/internal/domain"
	"example.com/footprint/internal/emissions"
)

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/activities", h.activities)
	mux.HandleFunc("/v1/activities/", h.activitySubresource)
	mux.HandleFunc("/v1/emissions/", h.emissionsSubresource)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) activities(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.recordActivity(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
	}
}

// activitySubresource handles /v1/activities/{userID}/{footprint|breakdown|stats}.
func (h *Handler) activitySubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID, resource, ok := splitSubresource(r.URL.Path, "/v1/activities/")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected /v1/activities/{userId}/{resource}")
		return
	}

	switch resource {
	case "footprint":
		h.getFootprint(w, r, userID)
	case "breakdown":
		h.getBreakdown(w, r, userID)
	case "stats":
		h.getStats(w, r, userID)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown resource")
	}
}

// emissionsSubresource handles /v1/emissions/{userID}/daily.
func (h *Handler) emissionsSubresource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	userID, resource, ok := splitSubresource(r.URL.Path, "/v1/emissions/")
	if !ok || resource != "daily" {
		writeError(w, http.StatusBadRequest, "invalid_request", "expected /v1/emissions/{userId}/daily")
		return
	}

	h.getDailyEmissions(w, r, userID)
}

func (h *Handler) recordActivity(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireScope(w, r, auth.ScopeActivitiesWrite); !ok {
		return
	}

	var req RecordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}

	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	record, err := h.service.RecordActivity(r.Context(), domain.RecordActivityInput{
		UserID:          req.UserID,
		Service:         emissions.Service(req.Service),
		DurationSeconds: req.DurationSeconds,
		DataUsedMB:      req.DataUsedMB,
		Resolution:      emissions.Resolution(req.Resolution),
	})
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toActivityView(*record))
}

func (h *Handler) getFootprint(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := requireReadScope(w, r); !ok {
		return
	}

	footprint, err := h.service.GetUserFootprint(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, FootprintResponse{
		TotalCO2eGrams: footprint.TotalCO2eGrams,
		ActivityCount:  footprint.ActivityCount,
		LastUpdated:    footprint.LastUpdated,
		IsCached:       footprint.IsCached,
	})
}

func (h *Handler) getBreakdown(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := requireReadScope(w, r); !ok {
		return
	}

	rng, err := domain.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		respondError(w, err)
		return
	}

	rows, err := h.service.GetServiceBreakdown(r.Context(), userID, rng)
	if err != nil {
		respondError(w, err)
		return
	}

	items := make([]ServiceBreakdownItem, 0, len(rows))
	for _, row := range rows {
		items = append(items, ServiceBreakdownItem{
			Service:         string(row.Service),
			CO2eGrams:       row.CO2eGrams,
			DurationSeconds: row.DurationSeconds,
			DataUsedMB:      row.DataUsedMB,
			Percentage:      row.Percentage,
		})
	}

	writeJSON(w, http.StatusOK, BreakdownResponse{Range: string(rng), Items: items})
}

func (h *Handler) getDailyEmissions(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := requireReadScope(w, r); !ok {
		return
	}

	rng, err := domain.ParseRange(r.URL.Query().Get("range"))
	if err != nil {
		respondError(w, err)
		return
	}

	buckets, err := h.service.GetDailyEmissions(r.Context(), userID, rng)
	if err != nil {
		respondError(w, err)
		return
	}

	items := make([]DailyEmissionsItem, 0, len(buckets))
	for _, bucket := range buckets {
		items = append(items, DailyEmissionsItem{Date: bucket.Date, TotalCO2eGrams: bucket.TotalCO2eGrams})
	}

	writeJSON(w, http.StatusOK, DailyEmissionsResponse{Range: string(rng), Items: items})
}

func (h *Handler) getStats(w http.ResponseWriter, r *http.Request, userID string) {
	if _, ok := requireReadScope(w, r); !ok {
		return
	}

	stats, err := h.service.GetActivityStats(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{
		TotalCO2eGrams:  stats.TotalCO2eGrams,
		DurationSeconds: stats.DurationSeconds,
		DataUsedMB:      stats.DataUsedMB,
		ActivityCount:   stats.ActivityCount,
		LastUpdated:     stats.LastUpdated,
		IsCached:        stats.IsCached,
	})
}

func requireScope(w http.ResponseWriter, r *http.Request, scope string) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(scope) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+scope+" required")
		return nil, false
	}
	return claims, true
}

// requireReadScope accepts either read or write scope, matching how the
// dashboard and the extension authenticate.
func requireReadScope(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return nil, false
	}
	if !claims.HasScope(auth.ScopeActivitiesRead) && !claims.HasScope(auth.ScopeActivitiesWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeActivitiesRead+" required")
		return nil, false
	}
	return claims, true
}

// respondError maps the domain error taxonomy onto HTTP statuses. Storage
// detail never reaches clients.
func respondError(w http.ResponseWriter, err error) {
	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		writeError(w, http.StatusBadRequest, "validation_failed", verr.Error())
		return
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "user not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "server_error", "internal error")
}

func splitSubresource(path, prefix string) (userID, resource string, ok bool) {
	rest := strings.TrimPrefix(path, prefix)
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

// RecordActivityRequest is the payload for POST /v1/activities.
type RecordActivityRequest struct {
	UserID          string  `json:"user_id"`
	Service         string  `json:"service"`
	DurationSeconds int     `json:"duration_seconds"`
	DataUsedMB      float64 `json:"data_used_mb"`
	Resolution      string  `json:"resolution,omitempty"`
}

// Validate ensures request shape correctness; semantic validation (known
// service, resolution rules) belongs to the calculator.
func (r RecordActivityRequest) Validate() error {
	if strings.TrimSpace(r.UserID) == "" {
		return errors.New("user_id is required")
	}
	if strings.TrimSpace(r.Service) == "" {
		return errors.New("service is required")
	}
	if r.DurationSeconds < 0 {
		return errors.New("duration_seconds must be >= 0")
	}
	if r.DataUsedMB < 0 {
		return errors.New("data_used_mb must be >= 0")
	}
	return nil
}

// ActivityView exposes the stored activity, including the derived CO2e.
type ActivityView struct {
	ActivityID      string    `json:"activity_id"`
	UserID          string    `json:"user_id"`
	Service         string    `json:"service"`
	DurationSeconds int       `json:"duration_seconds"`
	DataUsedMB      float64   `json:"data_used_mb"`
	Resolution      string    `json:"resolution,omitempty"`
	CO2eGrams       float64   `json:"co2e_grams"`
	CreatedAt       time.Time `json:"created_at"`
}

// FootprintResponse is the body for GET /v1/activities/{userId}/footprint.
type FootprintResponse struct {
	TotalCO2eGrams float64   `json:"total_co2e_grams"`
	ActivityCount  int       `json:"activity_count"`
	LastUpdated    time.Time `json:"last_updated"`
	IsCached       bool      `json:"is_cached"`
}

// ServiceBreakdownItem is one service's share of the window.
type ServiceBreakdownItem struct {
	Service         string  `json:"service"`
	CO2eGrams       float64 `json:"co2e_grams"`
	DurationSeconds int     `json:"duration_seconds"`
	DataUsedMB      float64 `json:"data_used_mb"`
	Percentage      float64 `json:"percentage"`
}

// BreakdownResponse packages service-wise results.
type BreakdownResponse struct {
	Range string                 `json:"range"`
	Items []ServiceBreakdownItem `json:"items"`
}

// DailyEmissionsItem is one calendar-day bucket.
type DailyEmissionsItem struct {
	Date           string  `json:"date"`
	TotalCO2eGrams float64 `json:"total_co2e_grams"`
}

// DailyEmissionsResponse packages time-bucketed results.
type DailyEmissionsResponse struct {
	Range string               `json:"range"`
	Items []DailyEmissionsItem `json:"items"`
}

// StatsResponse merges the footprint with usage totals.
type StatsResponse struct {
	TotalCO2eGrams  float64   `json:"total_co2e_grams"`
	DurationSeconds int       `json:"total_duration_seconds"`
	DataUsedMB      float64   `json:"total_data_used_mb"`
	ActivityCount   int       `json:"activity_count"`
	LastUpdated     time.Time `json:"last_updated"`
	IsCached        bool      `json:"is_cached"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(record domain.ActivityRecord) ActivityView {
	return ActivityView{
		ActivityID:      record.ID,
		UserID:          record.UserID,
		Service:         string(record.Service),
		DurationSeconds: record.DurationSeconds,
		DataUsedMB:      record.DataUsedMB,
		Resolution:      string(record.Resolution),
		CO2eGrams:       record.CO2eGrams,
		CreatedAt:       record.CreatedAt,
	}
}
