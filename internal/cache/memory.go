package cache

import (
	"context"
	"sync"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

// MemoryCache is the process-local mirror used when no Redis address is configured.
type MemoryCache struct {
	mu    sync.RWMutex
	cards map[string][]domain.SavedCard
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{cards: make(map[string][]domain.SavedCard)}
}

func (m *MemoryCache) Get(_ context.Context, userID string) ([]domain.SavedCard, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cards, ok := m.cards[userID]
	if !ok {
		return nil, ErrCacheMiss
	}
	out := make([]domain.SavedCard, len(cards))
	copy(out, cards)
	return out, nil
}

func (m *MemoryCache) Set(_ context.Context, userID string, cards []domain.SavedCard) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]domain.SavedCard, len(cards))
	copy(stored, cards)
	m.cards[userID] = stored
	return nil
}

func (m *MemoryCache) Delete(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cards, userID)
	return nil
}
