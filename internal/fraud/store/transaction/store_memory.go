package transaction

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"payguard/internal/fraud/models"
	"payguard/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	records map[uuid.UUID]Record
}

func NewMemory() *InMemoryStore {
	return &InMemoryStore{records: make(map[uuid.UUID]Record)}
}

func (s *InMemoryStore) Save(_ context.Context, req models.TransactionRequest, result models.EvaluationResult, fv models.FeatureVector) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.records[result.TransactionID]; ok {
		return existing.ID.String(), nil
	}
	rec := newRecord(req, result, fv)
	s.records[rec.TransactionID] = rec
	return rec.ID.String(), nil
}

func (s *InMemoryStore) Get(_ context.Context, transactionID uuid.UUID) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[transactionID]
	if !ok {
		return nil, fmt.Errorf("transaction %s: %w", transactionID, sentinel.ErrNotFound)
	}
	return &rec, nil
}

// Len returns the number of saved records.
func (s *InMemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
