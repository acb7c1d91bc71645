// Package normalization holds the static field mapping that tells the analytics
// backend how raw crunchbase fields translate into measurements.
package normalization

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed normalization_map.yaml
var mapDocument []byte

// Data types understood by the analytics backend.
const (
	TypeText   = "text"
	TypeLink   = "link"
	TypeInt    = "int"
	TypeFloat  = "float"
	TypeDate   = "date"
	TypeNested = "nested"
)

var knownTypes = map[string]bool{
	TypeText:   true,
	TypeLink:   true,
	TypeInt:    true,
	TypeFloat:  true,
	TypeDate:   true,
	TypeNested: true,
}

// Mapping is the full normalization map of one source.
type Mapping struct {
	Source   string        `json:"Source" yaml:"Source"`
	Mappings []Measurement `json:"Mappings" yaml:"Mappings"`
}

// Measurement maps one source field to a measurement. Nested measurements
// describe the fields of a sub-record.
type Measurement struct {
	SourceField         string        `json:"SourceField" yaml:"SourceField"`
	DataType            string        `json:"DataType" yaml:"DataType"`
	MeasurementName     string        `json:"MeasurementName" yaml:"MeasurementName"`
	SourceMeasurementID string        `json:"source_measurement_id,omitempty" yaml:"-"`
	NestedMappings      []Measurement `json:"NestedMappings,omitempty" yaml:"NestedMappings,omitempty"`
}

// Load parses the embedded normalization map. Call it once at startup and pass
// the result around; the value is never mutated afterwards.
func Load() (Mapping, error) {
	return Parse(mapDocument)
}

// Parse decodes and validates a normalization map document.
func Parse(doc []byte) (Mapping, error) {
	var m Mapping
	if err := yaml.Unmarshal(doc, &m); err != nil {
		return Mapping{}, fmt.Errorf("decode normalization map: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Mapping{}, err
	}
	return m, nil
}

// Validate checks that every measurement is complete and uses a known data type.
func (m Mapping) Validate() error {
	if m.Source == "" {
		return fmt.Errorf("normalization map: source is required")
	}
	if len(m.Mappings) == 0 {
		return fmt.Errorf("normalization map: no mappings")
	}
	return validateAll(m.Mappings, "")
}

func validateAll(items []Measurement, parent string) error {
	for i, item := range items {
		where := fmt.Sprintf("%s[%d]", parent, i)
		if item.SourceField == "" || item.MeasurementName == "" {
			return fmt.Errorf("normalization map %s: source field and measurement name are required", where)
		}
		if !knownTypes[item.DataType] {
			return fmt.Errorf("normalization map %s (%s): unknown data type %q", where, item.SourceField, item.DataType)
		}
		if item.DataType == TypeNested {
			if len(item.NestedMappings) == 0 {
				return fmt.Errorf("normalization map %s (%s): nested type without nested mappings", where, item.SourceField)
			}
			if err := validateAll(item.NestedMappings, where+"."+item.SourceField); err != nil {
				return err
			}
		} else if len(item.NestedMappings) > 0 {
			return fmt.Errorf("normalization map %s (%s): nested mappings on a %s field", where, item.SourceField, item.DataType)
		}
	}
	return nil
}

// Clone returns a deep copy so callers can annotate measurements without
// touching the shared map.
func (m Mapping) Clone() Mapping {
	return Mapping{Source: m.Source, Mappings: cloneAll(m.Mappings)}
}

func cloneAll(items []Measurement) []Measurement {
	if items == nil {
		return nil
	}
	out := make([]Measurement, len(items))
	for i, item := range items {
		out[i] = item
		out[i].NestedMappings = cloneAll(item.NestedMappings)
	}
	return out
}

// Count returns the number of measurements, nested ones included.
func (m Mapping) Count() int {
	return countAll(m.Mappings)
}

func countAll(items []Measurement) int {
	n := len(items)
	for _, item := range items {
		n += countAll(item.NestedMappings)
	}
	return n
}
