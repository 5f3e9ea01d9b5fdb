package rule

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payguard/internal/fraud/models"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemory(
		models.Rule{Name: "night_owl", Enabled: true, Score: 0.2,
			Condition: models.Condition{Kind: models.ConditionLessThan, Feature: models.FeatureHourOfDay, Threshold: 5}},
		models.Rule{Name: "blocked_merchants", Enabled: true, Score: 0.6,
			Condition: models.Condition{Kind: models.ConditionInSet, Feature: models.FeatureMerchantID, Values: []string{"m1", "m2"}}},
		models.Rule{Name: "retired", Enabled: false, Score: 0.9,
			Condition: models.Condition{Kind: models.ConditionGreaterThan, Feature: models.FeatureAmount, Threshold: 1}},
	)

	t.Run("lists enabled rules by name", func(t *testing.T) {
		rules, err := s.ListEnabledRules(ctx)
		require.NoError(t, err)
		require.Len(t, rules, 2)
		assert.Equal(t, "blocked_merchants", rules[0].Name)
		assert.Equal(t, "night_owl", rules[1].Name)
		assert.NotEmpty(t, rules[0].ID)
	})

	t.Run("upsert by name keeps the id", func(t *testing.T) {
		before, _ := s.ListEnabledRules(ctx)
		id, err := s.Upsert(ctx, models.Rule{Name: "night_owl", Enabled: true, Score: 0.3,
			Condition: models.Condition{Kind: models.ConditionLessThan, Feature: models.FeatureHourOfDay, Threshold: 4}})
		require.NoError(t, err)
		assert.Equal(t, before[1].ID, id)

		after, _ := s.ListEnabledRules(ctx)
		assert.Equal(t, 0.3, after[1].Score)
	})

	t.Run("returned values are copies", func(t *testing.T) {
		rules, _ := s.ListEnabledRules(ctx)
		rules[0].Condition.Values[0] = "mutated"
		again, _ := s.ListEnabledRules(ctx)
		assert.Equal(t, "m1", again[0].Condition.Values[0])
	})
}
