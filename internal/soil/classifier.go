package soil

import (
	"bytes"
	"encoding/json"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Classify buckets a value against the fixed thresholds for a property.
// Non-finite values and properties outside the closed set are Unknown.
func Classify(p Property, v float64) Band {
	t, ok := thresholds[p]
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return BandUnknown
	}

	switch {
	case v <= t.Low:
		return BandLow
	case v <= t.High:
		return BandModerate
	default:
		return BandHigh
	}
}

// ClassifyProperty classifies a dynamically typed value by property name.
// It never fails: an unrecognized name or a value that cannot be read as a
// number yields BandUnknown.
func ClassifyProperty(value any, name string) Band {
	p, ok := ParseProperty(name)
	if !ok {
		return BandUnknown
	}
	v, ok := toFloat(value)
	if !ok {
		return BandUnknown
	}
	return Classify(p, v)
}

// ClassifySoilData classifies the nitrogen, phosphorus, potassium and pH
// fields of a payload using the first (0-20 cm) record of each.
//
// A field that is absent, null or an empty list is left out of the profile.
// A field that is present but cannot be read is recorded as BandUnknown.
func ClassifySoilData(payload *RawPayload) Profile {
	profile := make(Profile, len(fieldMapping))
	if payload == nil {
		return profile
	}

	for _, m := range fieldMapping {
		raw, ok := payload.Property[m.field]
		if !ok {
			continue
		}

		var records []json.RawMessage
		if err := json.Unmarshal(raw, &records); err != nil {
			profile[m.property] = unknown(m.property, raw)
			continue
		}
		if len(records) == 0 {
			continue
		}

		scalar, ok := firstValue(records[0])
		if !ok {
			profile[m.property] = unknown(m.property, records[0])
			continue
		}

		v, ok := parseScalar(scalar)
		if !ok {
			profile[m.property] = unknown(m.property, scalar)
			continue
		}

		profile[m.property] = PropertyClassification{
			Property: m.property,
			Value:    v,
			Raw:      string(bytes.TrimSpace(scalar)),
			Band:     Classify(m.property, v),
		}
	}

	return profile
}

func unknown(p Property, raw json.RawMessage) PropertyClassification {
	return PropertyClassification{
		Property: p,
		Raw:      string(bytes.TrimSpace(raw)),
		Band:     BandUnknown,
	}
}

// firstValue extracts record.value.value.
func firstValue(record json.RawMessage) (json.RawMessage, bool) {
	var r struct {
		Value *struct {
			Value json.RawMessage `json:"value"`
		} `json:"value"`
	}
	if err := json.Unmarshal(record, &r); err != nil || r.Value == nil {
		return nil, false
	}
	if len(r.Value.Value) == 0 {
		return nil, false
	}
	return r.Value.Value, true
}

// parseScalar reads a JSON number or a JSON string holding a number.
func parseScalar(raw json.RawMessage) (float64, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return 0, false
	}
	return toFloat(v)
}

func toFloat(value any) (float64, bool) {
	var (
		f   float64
		err error
	)

	switch v := value.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	case json.Number:
		f, err = v.Float64()
	case string:
		f, err = strconv.ParseFloat(strings.TrimSpace(v), 64)
	case json.RawMessage:
		return parseScalar(v)
	default:
		// Remaining numeric kinds, including named types such as
		// type Percent float32.
		rv := reflect.ValueOf(value)
		switch {
		case rv.CanInt():
			f = float64(rv.Int())
		case rv.CanUint():
			f = float64(rv.Uint())
		case rv.CanFloat():
			f = rv.Float()
		case rv.Kind() == reflect.String:
			f, err = strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
		default:
			return 0, false
		}
	}

	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
