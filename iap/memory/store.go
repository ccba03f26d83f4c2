package memory

import (
	"context"
	"sync"

	"github.com/code-payments/flipchat-iap/iap"
)

type InMemoryStore struct {
	mu           sync.RWMutex
	entitlements map[string]bool
}

func NewInMemory() iap.EntitlementStore {
	return &InMemoryStore{
		entitlements: map[string]bool{},
	}
}

func (s *InMemoryStore) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entitlements = make(map[string]bool)
}

func (s *InMemoryStore) SetEntitlement(_ context.Context, productID string, owned bool) error {
	if productID == "" {
		return iap.ErrEmptyProduct
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entitlements[productID] = owned
	return nil
}

func (s *InMemoryStore) IsEntitled(_ context.Context, productID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.entitlements[productID], nil
}
