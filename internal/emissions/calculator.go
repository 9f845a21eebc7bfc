package emissions

import (
	"fmt"
	"math"
)

// ValidationError reports an input that can never be persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Usage captures the raw fields of one activity before CO2e is derived.
type Usage struct {
	Service         Service
	DurationSeconds int
	DataUsedMB      float64
	Resolution      Resolution
}

// Compute derives the CO2e grams for a single activity. It is pure and
// deterministic: the same usage always yields the same value. A
// *ValidationError means the activity must be rejected before any
// persistence happens.
func Compute(u Usage) (float64, error) {
	if !KnownService(u.Service) {
		return 0, &ValidationError{Field: "service", Reason: fmt.Sprintf("unknown service %q", u.Service)}
	}
	if u.DurationSeconds < 0 {
		return 0, &ValidationError{Field: "duration_seconds", Reason: "must be >= 0"}
	}
	if u.DataUsedMB < 0 {
		return 0, &ValidationError{Field: "data_used_mb", Reason: "must be >= 0"}
	}

	quality := qualityDefault
	if RequiresResolution(u.Service) {
		if u.Resolution == "" {
			return 0, &ValidationError{Field: "resolution", Reason: fmt.Sprintf("resolution required for %s", u.Service)}
		}
		switch u.Resolution {
		case ResolutionSD, ResolutionHD, Resolution4K:
		default:
			return 0, &ValidationError{Field: "resolution", Reason: fmt.Sprintf("unknown resolution %q", u.Resolution)}
		}
		quality = string(u.Resolution)
	} else if u.Resolution != "" {
		return 0, &ValidationError{Field: "resolution", Reason: fmt.Sprintf("resolution not applicable to %s", u.Service)}
	}

	factor, ok := LookupFactor(u.Service, quality)
	if !ok {
		return 0, &ValidationError{Field: "service", Reason: fmt.Sprintf("no emission factor for %s/%s", u.Service, quality)}
	}

	var grams float64
	switch factor.Unit {
	case UnitPerMinute:
		grams = factor.GramsPerUnit * float64(u.DurationSeconds) / 60
	case UnitPerMB:
		grams = factor.GramsPerUnit * u.DataUsedMB
	}

	return round2(grams), nil
}

// round2 keeps stored CO2e values reproducible at two decimal places.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
