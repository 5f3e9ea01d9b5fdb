package models

import (
	"fmt"
	"strings"

	"payguard/pkg/platform/sentinel"
)

// ConditionKind is the closed set of predicates a stored rule may use.
type ConditionKind string

const (
	ConditionGreaterThan ConditionKind = "greater_than"
	ConditionLessThan    ConditionKind = "less_than"
	ConditionEquals      ConditionKind = "equals"
	ConditionInSet       ConditionKind = "in_set"
)

// ParseConditionKind normalizes and validates a stored kind.
func ParseConditionKind(s string) (ConditionKind, error) {
	kind := ConditionKind(strings.ToLower(strings.TrimSpace(s)))
	switch kind {
	case ConditionGreaterThan, ConditionLessThan, ConditionEquals, ConditionInSet:
		return kind, nil
	}
	return "", fmt.Errorf("unknown condition kind %q: %w", s, sentinel.ErrInvalidState)
}

// Condition is a decoded predicate over one feature. Only the fields relevant
// to Kind are set: Threshold for comparisons, Value for equals, Values for
// in_set.
type Condition struct {
	Kind      ConditionKind
	Feature   string
	Threshold float64
	Value     string
	Values    []string
}

// Validate checks that the condition is complete for its kind.
func (c Condition) Validate() error {
	if strings.TrimSpace(c.Feature) == "" {
		return fmt.Errorf("condition feature is required: %w", sentinel.ErrInvalidState)
	}
	switch c.Kind {
	case ConditionGreaterThan, ConditionLessThan:
		return nil
	case ConditionEquals:
		if c.Value == "" {
			return fmt.Errorf("equals condition on %s needs a value: %w", c.Feature, sentinel.ErrInvalidState)
		}
		return nil
	case ConditionInSet:
		if len(c.Values) == 0 {
			return fmt.Errorf("in_set condition on %s needs values: %w", c.Feature, sentinel.ErrInvalidState)
		}
		return nil
	}
	return fmt.Errorf("unknown condition kind %q: %w", c.Kind, sentinel.ErrInvalidState)
}

// String renders the condition for logs.
func (c Condition) String() string {
	switch c.Kind {
	case ConditionGreaterThan:
		return fmt.Sprintf("%s > %g", c.Feature, c.Threshold)
	case ConditionLessThan:
		return fmt.Sprintf("%s < %g", c.Feature, c.Threshold)
	case ConditionEquals:
		return fmt.Sprintf("%s == %q", c.Feature, c.Value)
	case ConditionInSet:
		return fmt.Sprintf("%s in [%s]", c.Feature, strings.Join(c.Values, ","))
	}
	return string(c.Kind)
}

// Rule is a stored rule definition. Rules are read-only inputs to the engine.
type Rule struct {
	ID          string
	Name        string
	Description string
	Condition   Condition
	Score       float64
	Enabled     bool
}
