package rule

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"

	"payguard/internal/fraud/models"
)

// InMemoryStore keeps rules keyed by name.
type InMemoryStore struct {
	mu    sync.RWMutex
	rules map[string]models.Rule
}

func NewMemory(rules ...models.Rule) *InMemoryStore {
	s := &InMemoryStore{rules: make(map[string]models.Rule, len(rules))}
	for _, r := range rules {
		_, _ = s.Upsert(context.Background(), r)
	}
	return s
}

// ListEnabledRules returns enabled rules ordered by name.
func (s *InMemoryStore) ListEnabledRules(_ context.Context) ([]models.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.Rule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.Enabled {
			r.Condition.Values = slices.Clone(r.Condition.Values)
			out = append(out, r)
		}
	}
	slices.SortFunc(out, func(a, b models.Rule) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out, nil
}

func (s *InMemoryStore) Upsert(_ context.Context, r models.Rule) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rules[r.Name]; ok && r.ID == "" {
		r.ID = existing.ID
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.Condition.Values = slices.Clone(r.Condition.Values)
	s.rules[r.Name] = r
	return r.ID, nil
}
