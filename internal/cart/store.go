// Package cart holds the client's canonical cart snapshot. The Store is the
// single writer; readers get copies.
package cart

import (
	"sync"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

type Store struct {
	mu     sync.RWMutex
	items  []domain.CartLineItem
	meta   domain.CartMeta
	status domain.CartStatus

	subMu  sync.Mutex
	subs   map[int]func(domain.CartAggregate)
	nextID int
}

func NewStore() *Store {
	return &Store{
		status: domain.CartStatusOpen,
		subs:   make(map[int]func(domain.CartAggregate)),
	}
}

// Items returns a copy of the current rows.
func (s *Store) Items() []domain.CartLineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

// Meta returns the last server-confirmed aggregates.
func (s *Store) Meta() domain.CartMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.meta
}

func (s *Store) Status() domain.CartStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Store) Snapshot() domain.CartAggregate {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

// LocalTotals recomputes item count and subtotal from the local rows,
// including optimistic edits not yet confirmed by the server.
func (s *Store) LocalTotals() domain.CartMeta {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.ComputeMeta(s.items)
}

// Item returns the row with the given id.
func (s *Store) Item(cartItemID int64) (domain.CartLineItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexLocked(cartItemID); i >= 0 {
		return s.items[i], true
	}
	return domain.CartLineItem{}, false
}

// Hydrate replaces the whole snapshot with server truth.
func (s *Store) Hydrate(items []domain.CartLineItem, meta domain.CartMeta, status domain.CartStatus) {
	if !status.IsValid() {
		status = domain.CartStatusOpen
	}
	s.mu.Lock()
	s.items = dedupe(items)
	s.meta = meta
	s.status = status
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// SetItemQuantityLocal sets a row's quantity ahead of server confirmation.
// The quantity is clamped to the row's stock. It returns the previous
// quantity so the caller can revert, and false when the row is unknown.
// Meta is left untouched.
func (s *Store) SetItemQuantityLocal(cartItemID int64, qty int) (previous int, ok bool) {
	s.mu.Lock()
	i := s.indexLocked(cartItemID)
	if i < 0 {
		s.mu.Unlock()
		return 0, false
	}
	previous = s.items[i].Quantity
	s.items[i].Quantity = domain.ClampQuantity(qty, s.items[i].StockAvailable)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return previous, true
}

// RemoveItemLocal deletes a row ahead of server confirmation and returns it for RestoreItem.
func (s *Store) RemoveItemLocal(cartItemID int64) (domain.CartLineItem, bool) {
	s.mu.Lock()
	i := s.indexLocked(cartItemID)
	if i < 0 {
		s.mu.Unlock()
		return domain.CartLineItem{}, false
	}
	removed := s.items[i]
	s.items = append(s.items[:i:i], s.items[i+1:]...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return removed, true
}

// RestoreItem puts back a row removed by RemoveItemLocal. It is a no-op when
// a row with the same id is already present (a refresh re-added it).
func (s *Store) RestoreItem(item domain.CartLineItem) bool {
	s.mu.Lock()
	if s.indexLocked(item.CartItemID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.items = append([]domain.CartLineItem{item}, s.items...)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
	return true
}

// SetStatus records the cart status reported by a checkout transition.
func (s *Store) SetStatus(status domain.CartStatus) {
	s.mu.Lock()
	if s.status == status {
		s.mu.Unlock()
		return
	}
	s.status = status
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.notify(snap)
}

// Clear empties the cart and reopens it.
func (s *Store) Clear() {
	s.Hydrate(nil, domain.CartMeta{}, domain.CartStatusOpen)
}

// Subscribe registers fn for every change. The returned func unregisters it.
func (s *Store) Subscribe(fn func(domain.CartAggregate)) func() {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		defer s.subMu.Unlock()
		delete(s.subs, id)
	}
}

func (s *Store) notify(snap domain.CartAggregate) {
	s.subMu.Lock()
	fns := make([]func(domain.CartAggregate), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

func (s *Store) snapshotLocked() domain.CartAggregate {
	return domain.CartAggregate{
		Items:  cloneItems(s.items),
		Meta:   s.meta,
		Status: s.status,
	}
}

func (s *Store) indexLocked(cartItemID int64) int {
	for i := range s.items {
		if s.items[i].CartItemID == cartItemID {
			return i
		}
	}
	return -1
}

func cloneItems(items []domain.CartLineItem) []domain.CartLineItem {
	if items == nil {
		return []domain.CartLineItem{}
	}
	out := make([]domain.CartLineItem, len(items))
	copy(out, items)
	return out
}

func dedupe(items []domain.CartLineItem) []domain.CartLineItem {
	seen := make(map[int64]struct{}, len(items))
	out := make([]domain.CartLineItem, 0, len(items))
	for _, item := range items {
		if _, dup := seen[item.CartItemID]; dup {
			continue
		}
		seen[item.CartItemID] = struct{}{}
		out = append(out, item)
	}
	return out
}
