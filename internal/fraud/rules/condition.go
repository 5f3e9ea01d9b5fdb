package rules

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"payguard/internal/fraud/models"
	pstrings "payguard/pkg/platform/strings"
)

var (
	ErrUnknownFeature = errors.New("unknown feature")
	ErrTypeMismatch   = errors.New("feature type mismatch")
)

// conditionRule evaluates a stored rule against the feature vector.
type conditionRule struct {
	rule models.Rule
	set  pstrings.Set
}

// newConditionRule validates a stored rule. Invalid rules are rejected here,
// once, instead of failing on every evaluation.
func newConditionRule(rule models.Rule) (Evaluator, error) {
	if err := rule.Condition.Validate(); err != nil {
		return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
	}
	if math.IsNaN(rule.Score) || math.IsInf(rule.Score, 0) {
		return nil, fmt.Errorf("rule %s: score is not finite", rule.Name)
	}
	c := conditionRule{rule: rule}
	if rule.Condition.Kind == models.ConditionInSet {
		c.set = pstrings.NewSet(rule.Condition.Values...)
	}
	return c, nil
}

func (c conditionRule) Name() string { return c.rule.Name }

func (c conditionRule) Evaluate(fv models.FeatureVector) (models.RuleOutcome, error) {
	matched, err := match(c.rule.Condition, c.set, fv)
	if err != nil {
		return outcome(c.rule.Name, false, 0), err
	}
	return outcome(c.rule.Name, matched, c.rule.Score), nil
}

// Match reports whether the condition holds for fv. An unknown feature or a
// value of the wrong type is an error, which callers treat as not triggered.
func Match(cond models.Condition, fv models.FeatureVector) (bool, error) {
	var set pstrings.Set
	if cond.Kind == models.ConditionInSet {
		set = pstrings.NewSet(cond.Values...)
	}
	return match(cond, set, fv)
}

func match(cond models.Condition, set pstrings.Set, fv models.FeatureVector) (bool, error) {
	raw, ok := fv.Lookup(cond.Feature)
	if !ok {
		return false, fmt.Errorf("%s: %w", cond.Feature, ErrUnknownFeature)
	}

	switch cond.Kind {
	case models.ConditionGreaterThan, models.ConditionLessThan:
		n, ok := numeric(raw)
		if !ok {
			return false, fmt.Errorf("%s is %T, want number: %w", cond.Feature, raw, ErrTypeMismatch)
		}
		if cond.Kind == models.ConditionGreaterThan {
			return n > cond.Threshold, nil
		}
		return n < cond.Threshold, nil

	case models.ConditionEquals:
		return equals(raw, cond.Value)

	case models.ConditionInSet:
		return set.Contains(text(raw)), nil
	}
	return false, fmt.Errorf("unsupported condition kind %q", cond.Kind)
}

func equals(raw any, want string) (bool, error) {
	if n, ok := numeric(raw); ok {
		w, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
		if err != nil {
			return false, fmt.Errorf("compare number with %q: %w", want, ErrTypeMismatch)
		}
		return n == w, nil
	}
	if b, ok := raw.(bool); ok {
		w, err := strconv.ParseBool(strings.TrimSpace(want))
		if err != nil {
			return false, fmt.Errorf("compare flag with %q: %w", want, ErrTypeMismatch)
		}
		return b == w, nil
	}
	return pstrings.Fold(text(raw)) == pstrings.Fold(want), nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case int:
		return float64(n), true
	}
	return 0, false
}

func text(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}
