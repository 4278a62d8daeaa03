// Package entities contains the core domain objects for the kommunekamp application
package entities

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// Attribute names produced by the entity builder.
const (
	AttrBreweries         = "numBreweries"
	AttrFootTrails        = "kmFootTrails"
	AttrRain              = "rain"
	AttrPercentageUnder35 = "percentageUnder35"
)

// SentinelUnavailable is how an unavailable metric is written on the wire.
const SentinelUnavailable = -1.0

var (
	// ErrMissingAttribute means a weight references an attribute the entity does not carry.
	ErrMissingAttribute = errors.New("missing attribute")
	// ErrKommNotFound means the metric provider has no municipality with the given id.
	ErrKommNotFound = errors.New("komm not found")
	// ErrInvalidKommID means the caller supplied an empty or malformed id.
	ErrInvalidKommID = errors.New("invalid komm id")
	// ErrMetricUnavailable means a single derived metric could not be computed.
	ErrMetricUnavailable = errors.New("metric unavailable")
)

// Metric is an optional numeric attribute value
type Metric struct {
	Value     float64
	Available bool
}

// Value returns an available metric
func Value(v float64) Metric {
	return Metric{Value: v, Available: true}
}

// Unavailable returns a metric that failed to compute
func Unavailable() Metric {
	return Metric{}
}

// Wire returns the value used in serialized output, mapping unavailable to the legacy sentinel.
func (m Metric) Wire() float64 {
	if !m.Available {
		return SentinelUnavailable
	}
	return m.Value
}

// Komm represents one municipality under comparison
type Komm struct {
	ID         string
	Name       string
	Attributes map[string]Metric
	Winner     bool // set by the scoring engine only
}

// NewKomm creates an entity record with an empty attribute mapping
func NewKomm(id, name string) *Komm {
	return &Komm{
		ID:         id,
		Name:       name,
		Attributes: make(map[string]Metric),
	}
}

// SetAttribute stores a metric under the given attribute name
func (k *Komm) SetAttribute(name string, m Metric) {
	if k.Attributes == nil {
		k.Attributes = make(map[string]Metric)
	}
	k.Attributes[name] = m
}

// Attribute returns the metric stored under name.
// A present but unavailable metric is not an error; an absent key is.
func (k *Komm) Attribute(name string) (Metric, error) {
	m, ok := k.Attributes[name]
	if !ok {
		return Metric{}, fmt.Errorf("%w %q on komm %s", ErrMissingAttribute, name, k.ID)
	}
	return m, nil
}

// AttributeNames returns the attribute names in sorted order
func (k *Komm) AttributeNames() []string {
	names := make([]string, 0, len(k.Attributes))
	for name := range k.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MarshalJSON writes the flat object the report templates expect:
// {"komm": id, "name": name, <attributes...>, "winner": bool}
func (k *Komm) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(key string, v any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return err
		}
		vb, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", key, err)
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return nil
	}

	if err := writeField("komm", k.ID); err != nil {
		return nil, err
	}
	if err := writeField("name", k.Name); err != nil {
		return nil, err
	}
	for _, name := range k.AttributeNames() {
		if name == "komm" || name == "name" || name == "winner" {
			continue
		}
		if err := writeField(name, k.Attributes[name].Wire()); err != nil {
			return nil, err
		}
	}
	if err := writeField("winner", k.Winner); err != nil {
		return nil, err
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads the flat wire object back. Numeric fields become attributes,
// the legacy sentinel becomes an unavailable metric.
func (k *Komm) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Komm{Attributes: make(map[string]Metric)}
	for key, value := range raw {
		switch key {
		case "komm":
			var id any
			if err := json.Unmarshal(value, &id); err != nil {
				return fmt.Errorf("failed to decode komm: %w", err)
			}
			out.ID = fmt.Sprint(id)
		case "name":
			if err := json.Unmarshal(value, &out.Name); err != nil {
				return fmt.Errorf("failed to decode name: %w", err)
			}
		case "winner":
			if err := json.Unmarshal(value, &out.Winner); err != nil {
				return fmt.Errorf("failed to decode winner: %w", err)
			}
		default:
			var v float64
			if err := json.Unmarshal(value, &v); err != nil {
				continue
			}
			if v == SentinelUnavailable {
				out.Attributes[key] = Unavailable()
			} else {
				out.Attributes[key] = Value(v)
			}
		}
	}

	*k = out
	return nil
}
