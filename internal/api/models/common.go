// Package models provides request and response models for the soil advisor API.
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// Point represents a geographic coordinate.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate returns one field error per out-of-range or non-finite component.
func (p Point) Validate() []FieldError {
	var errs []FieldError
	if msg := checkDegrees(p.Lat, 90); msg != "" {
		errs = append(errs, FieldError{Field: "lat", Message: msg, Code: codeFor(msg)})
	}
	if msg := checkDegrees(p.Lon, 180); msg != "" {
		errs = append(errs, FieldError{Field: "lon", Message: msg, Code: codeFor(msg)})
	}
	return errs
}

const (
	msgNotFinite  = "must be a finite number"
	codeNotFinite = "NOT_FINITE"
	codeRange     = "OUT_OF_RANGE"
)

func checkDegrees(v, limit float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return msgNotFinite
	}
	if v < -limit || v > limit {
		if limit == 90 {
			return "must be between -90 and 90"
		}
		return "must be between -180 and 180"
	}
	return ""
}

func codeFor(msg string) string {
	if msg == msgNotFinite {
		return codeNotFinite
	}
	return codeRange
}

// HealthStatus represents the health status of a service.
type HealthStatus string

const (
	HealthStatusOK       HealthStatus = "OK"
	HealthStatusDegraded HealthStatus = "DEGRADED"
	HealthStatusFail     HealthStatus = "FAIL"
)

// Timestamp is a helper type for time.Time with custom JSON formatting.
type Timestamp time.Time

// MarshalJSON implements json.Marshaler for Timestamp.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	return []byte(`"` + time.Time(t).Format(time.RFC3339) + `"`), nil
}

// UnmarshalJSON parses the RFC 3339 form written by MarshalJSON, so API
// clients can decode responses into these models.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("timestamp must be an RFC 3339 string: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	*t = Timestamp(parsed)
	return nil
}

// Time returns the underlying time.Time.
func (t Timestamp) Time() time.Time {
	return time.Time(t)
}
