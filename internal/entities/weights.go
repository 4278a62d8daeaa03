package entities

import (
	"errors"
	"fmt"
)

// AttributeWeight pairs a comparison attribute with its weight and direction
type AttributeWeight struct {
	Attribute     string  `json:"attribute" yaml:"attribute"`
	Factor        float64 `json:"factor" yaml:"factor"`
	LowerIsBetter bool    `json:"lower_is_better,omitempty" yaml:"lower_is_better"`
}

// Validate ensures the weight is usable
func (w AttributeWeight) Validate() error {
	if w.Attribute == "" {
		return errors.New("attribute name is required")
	}
	if w.Factor <= 0 {
		return fmt.Errorf("factor for %s must be positive, got %v", w.Attribute, w.Factor)
	}
	return nil
}

// ValidateWeights checks a full weight list: non-empty, every entry valid, no duplicates
func ValidateWeights(weights []AttributeWeight) error {
	if len(weights) == 0 {
		return errors.New("at least one attribute weight is required")
	}
	seen := make(map[string]bool, len(weights))
	for i, w := range weights {
		if err := w.Validate(); err != nil {
			return fmt.Errorf("invalid weight at index %d: %w", i, err)
		}
		if seen[w.Attribute] {
			return fmt.Errorf("duplicate weight for attribute %s", w.Attribute)
		}
		seen[w.Attribute] = true
	}
	return nil
}

// DefaultWeights returns the weights the service has always been deployed with
func DefaultWeights() []AttributeWeight {
	return []AttributeWeight{
		{Attribute: AttrBreweries, Factor: 0.6},
		{Attribute: AttrFootTrails, Factor: 0.2},
		{Attribute: AttrRain, Factor: 0.3, LowerIsBetter: true},
	}
}
