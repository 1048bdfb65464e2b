// Package soil holds the soil-property domain: coordinates, the raw payload
// returned by soil-data providers, and the threshold classifier that turns
// measurements into Low/Moderate/High bands.
package soil

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
)

// Soil provider errors.
var (
	ErrAuthFailed          = errors.New("soil provider authentication failed")
	ErrFetchFailed         = errors.New("soil property lookup failed")
	ErrProviderUnavailable = errors.New("soil provider unavailable")
	ErrInvalidCoordinate   = errors.New("invalid coordinate")
)

// Provider fetches raw soil properties for a coordinate.
type Provider interface {
	// FetchSoilProperties returns the top-soil payload for the coordinate.
	FetchSoilProperties(ctx context.Context, coord Coordinate) (*RawPayload, error)

	// Name returns the provider name for logging.
	Name() string
}

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lon"`
}

// Validate reports non-finite or out-of-range degrees. Providers do not call
// it; input surfaces check coordinates before starting a lookup.
func (c Coordinate) Validate() error {
	switch {
	case math.IsNaN(c.Latitude) || math.IsInf(c.Latitude, 0):
		return fmt.Errorf("%w: latitude must be a finite number", ErrInvalidCoordinate)
	case math.IsNaN(c.Longitude) || math.IsInf(c.Longitude, 0):
		return fmt.Errorf("%w: longitude must be a finite number", ErrInvalidCoordinate)
	case c.Latitude < -90 || c.Latitude > 90:
		return fmt.Errorf("%w: latitude %v outside [-90, 90]", ErrInvalidCoordinate, c.Latitude)
	case c.Longitude < -180 || c.Longitude > 180:
		return fmt.Errorf("%w: longitude %v outside [-180, 180]", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// Property is one of the soil properties the classifier understands.
type Property string

const (
	Nitrogen   Property = "nitrogen"
	Phosphorus Property = "phosphorus"
	Potassium  Property = "potassium"
	PH         Property = "ph"
)

// AllProperties returns the classified properties in display order.
func AllProperties() []Property {
	return []Property{Nitrogen, Phosphorus, Potassium, PH}
}

// ParseProperty resolves a property name case-insensitively.
func ParseProperty(name string) (Property, bool) {
	p := Property(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := thresholds[p]; !ok {
		return "", false
	}
	return p, true
}

// Unit returns the measurement unit, or "" for pH.
func (p Property) Unit() string {
	switch p {
	case Nitrogen:
		return "g/kg"
	case Phosphorus, Potassium:
		return "mg/kg"
	default:
		return ""
	}
}

// Label returns the human-readable name with its nutrient symbol.
func (p Property) Label() string {
	switch p {
	case Nitrogen:
		return "Nitrogen (N)"
	case Phosphorus:
		return "Phosphorus (P)"
	case Potassium:
		return "Potassium (K)"
	case PH:
		return "pH"
	default:
		return string(p)
	}
}

// Band is the discretized interpretation of a measurement.
type Band string

const (
	BandLow      Band = "Low"
	BandModerate Band = "Moderate"
	BandHigh     Band = "High"
	BandUnknown  Band = "Unknown"
)

// Threshold holds the upper bounds of the Low and Moderate bands.
// A value equal to a bound belongs to the lower band.
type Threshold struct {
	Low  float64
	High float64
}

var thresholds = map[Property]Threshold{
	Nitrogen:   {Low: 1.5, High: 5.0},
	Phosphorus: {Low: 10, High: 50},
	Potassium:  {Low: 39, High: 195},
	PH:         {Low: 5.3, High: 7.3},
}

// ThresholdFor returns the fixed threshold pair for a property.
func ThresholdFor(p Property) (Threshold, bool) {
	t, ok := thresholds[p]
	return t, ok
}

// PropertyClassification is the classified value of a single property.
type PropertyClassification struct {
	Property Property `json:"property"`

	// Value is the parsed measurement, zero when Band is Unknown.
	Value float64 `json:"value"`

	// Raw is the measurement exactly as the provider sent it.
	Raw string `json:"raw,omitempty"`

	Band Band `json:"classification"`
}

// Profile maps canonical property names to their classification.
// Properties missing from the provider payload are absent from the map.
type Profile map[Property]PropertyClassification

// Get returns the classification for a property.
func (p Profile) Get(prop Property) (PropertyClassification, bool) {
	c, ok := p[prop]
	return c, ok
}

// Ordered returns the classifications present in the profile in display order.
func (p Profile) Ordered() []PropertyClassification {
	out := make([]PropertyClassification, 0, len(p))
	for _, prop := range AllProperties() {
		if c, ok := p[prop]; ok {
			out = append(out, c)
		}
	}
	return out
}
