package soil

import (
	"encoding/json"
	"fmt"
)

// Raw field identifiers used by the iSDAsoil property endpoint.
const (
	FieldNitrogenTotal          = "nitrogen_total"
	FieldPhosphorousExtractable = "phosphorous_extractable"
	FieldPotassiumExtractable   = "potassium_extractable"
	FieldPH                     = "ph"
)

// fieldMapping maps raw payload fields to canonical properties.
var fieldMapping = []struct {
	field    string
	property Property
}{
	{FieldNitrogenTotal, Nitrogen},
	{FieldPhosphorousExtractable, Phosphorus},
	{FieldPotassiumExtractable, Potassium},
	{FieldPH, PH},
}

// RawPayload is the body of a soil-property response:
//
//	{"property": {"ph": [{"value": {"value": 6.1, "unit": null}, "depth": {...}}], ...}}
//
// Fields are kept as raw JSON so that a single malformed property does not
// prevent the rest of the payload from being classified.
type RawPayload struct {
	Property map[string]json.RawMessage `json:"property"`
}

// Measurement is one depth-banded record of a property.
type Measurement struct {
	Value MeasurementValue `json:"value"`
	Depth Depth            `json:"depth"`
}

// MeasurementValue carries the scalar reading.
type MeasurementValue struct {
	Value json.RawMessage `json:"value"`
	Unit  string          `json:"unit"`
	Type  string          `json:"type"`
}

// Depth is the depth interval a measurement applies to, e.g. "0-20" cm.
type Depth struct {
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// Has reports whether the payload contains the field at all.
func (p *RawPayload) Has(field string) bool {
	if p == nil {
		return false
	}
	_, ok := p.Property[field]
	return ok
}

// Measurements decodes the records for a field. A missing or null field
// yields no records and no error.
func (p *RawPayload) Measurements(field string) ([]Measurement, error) {
	if p == nil {
		return nil, nil
	}
	raw, ok := p.Property[field]
	if !ok {
		return nil, nil
	}

	var records []Measurement
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", field, err)
	}
	return records, nil
}
