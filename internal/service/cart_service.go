package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/cart"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/debounce"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
)

// CanAddItem reports whether cart mutations are allowed for status.
func CanAddItem(status domain.CartStatus) bool {
	return status != domain.CartStatusCheckoutInProgress
}

// CartService performs cart mutations against the backend and keeps the
// Store in sync with the server.
type CartService struct {
	api   API
	store *cart.Store
	log   logrus.FieldLogger

	quantities *debounce.QuantityDebouncer

	fetchMu     sync.Mutex
	fetchGen    uint64
	cancelFetch context.CancelFunc
}

type CartOption func(*cartOptions)

type cartOptions struct {
	debounceDelay time.Duration
	onSettled     debounce.SettledFunc
}

// WithQuantityDebounce sets the quiet interval before a quantity change is sent.
func WithQuantityDebounce(d time.Duration) CartOption {
	return func(o *cartOptions) { o.debounceDelay = d }
}

// WithQuantitySettled registers a callback for every debounced commit.
func WithQuantitySettled(fn debounce.SettledFunc) CartOption {
	return func(o *cartOptions) { o.onSettled = fn }
}

func NewCartService(api API, store *cart.Store, log logrus.FieldLogger, opts ...CartOption) *CartService {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	o := cartOptions{debounceDelay: debounce.DefaultDelay}
	for _, opt := range opts {
		opt(&o)
	}

	s := &CartService{
		api:   api,
		store: store,
		log:   log.WithField("component", "cart"),
	}
	dOpts := []debounce.Option{debounce.WithDelay(o.debounceDelay), debounce.WithLogger(s.log)}
	if o.onSettled != nil {
		dOpts = append(dOpts, debounce.WithOnSettled(o.onSettled))
	}
	s.quantities = debounce.New(s.CommitQuantity, dOpts...)
	return s
}

func (s *CartService) Store() *cart.Store {
	return s.store
}

// Refresh fetches the cart and hydrates the store. Starting a new Refresh
// aborts the previous one. A superseded or aborted fetch returns nil and
// leaves the store alone.
func (s *CartService) Refresh(ctx context.Context) error {
	s.fetchMu.Lock()
	if s.cancelFetch != nil {
		s.cancelFetch()
	}
	s.fetchGen++
	gen := s.fetchGen
	fetchCtx, cancel := context.WithCancel(ctx)
	s.cancelFetch = cancel
	s.fetchMu.Unlock()
	defer cancel()

	var body cartResponse
	err := s.api.Do(fetchCtx, gateway.Request{Method: http.MethodGet, Path: "/api/cart"}, &body)

	s.fetchMu.Lock()
	defer s.fetchMu.Unlock()
	if gen != s.fetchGen {
		s.log.WithField("generation", gen).Debug("cart fetch superseded")
		return nil
	}
	s.cancelFetch = nil
	if err != nil {
		if ctx.Err() != nil {
			s.log.WithError(ctx.Err()).Debug("cart fetch aborted")
			return nil
		}
		return fmt.Errorf("fetch cart: %w", err)
	}

	items, meta, status := body.toDomain()
	s.store.Hydrate(items, meta, status)
	return nil
}

// AddItem adds a product to the cart and refetches it.
func (s *CartService) AddItem(ctx context.Context, in AddItemInput) error {
	if !CanAddItem(s.store.Status()) {
		return ErrCheckoutConflict
	}
	if err := validateAddItem(in); err != nil {
		return err
	}

	req := gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/cart-items",
		Body: addItemRequest{
			ProductID: in.ProductID,
			Quantity:  in.Quantity,
			Size:      in.Size,
			ColorHex:  in.ColorHex,
		},
	}
	if err := s.api.Do(ctx, req, nil); err != nil {
		if gateway.StatusCode(err) == http.StatusConflict {
			// server already moved the cart into checkout
			s.refreshQuietly(ctx)
			return fmt.Errorf("%w: %v", ErrCheckoutConflict, err)
		}
		return err
	}

	s.refreshQuietly(ctx)
	return nil
}

// ChangeQuantity applies qty locally at once (clamped to stock) and schedules
// a debounced commit. It returns the clamped quantity.
func (s *CartService) ChangeQuantity(cartItemID int64, qty int) (int, error) {
	if !CanAddItem(s.store.Status()) {
		return 0, ErrCheckoutConflict
	}
	if _, ok := s.store.SetItemQuantityLocal(cartItemID, qty); !ok {
		return 0, ErrItemNotFound
	}
	item, _ := s.store.Item(cartItemID)
	s.quantities.Schedule(cartItemID, item.Quantity)
	return item.Quantity, nil
}

// CommitQuantity sends qty for cartItemID and refetches the cart. On failure
// the cart is refetched so the optimistic value does not stick.
func (s *CartService) CommitQuantity(ctx context.Context, cartItemID int64, qty int) error {
	if !CanAddItem(s.store.Status()) {
		// the local value was never sent; take the server's back
		s.refreshQuietly(ctx)
		return ErrCheckoutConflict
	}
	if err := s.putQuantity(ctx, cartItemID, qty); err != nil {
		s.refreshQuietly(ctx)
		return err
	}
	s.refreshQuietly(ctx)
	return nil
}

// UpdateQuantity is the immediate form of ChangeQuantity: the local value is
// reverted if the server rejects it.
func (s *CartService) UpdateQuantity(ctx context.Context, cartItemID int64, qty int) error {
	if !CanAddItem(s.store.Status()) {
		return ErrCheckoutConflict
	}
	s.quantities.Cancel(cartItemID)

	previous, ok := s.store.SetItemQuantityLocal(cartItemID, qty)
	if !ok {
		return ErrItemNotFound
	}
	item, _ := s.store.Item(cartItemID)

	if err := s.putQuantity(ctx, cartItemID, item.Quantity); err != nil {
		s.store.SetItemQuantityLocal(cartItemID, previous)
		return err
	}
	s.refreshQuietly(ctx)
	return nil
}

// RemoveItem drops the row locally, deletes it on the server and restores it
// if the delete fails.
func (s *CartService) RemoveItem(ctx context.Context, cartItemID int64) error {
	if !CanAddItem(s.store.Status()) {
		return ErrCheckoutConflict
	}
	s.quantities.Cancel(cartItemID)

	removed, ok := s.store.RemoveItemLocal(cartItemID)
	if !ok {
		return ErrItemNotFound
	}

	req := gateway.Request{
		Method: http.MethodDelete,
		Path:   fmt.Sprintf("/api/cart-items/%d", cartItemID),
	}
	if err := s.api.Do(ctx, req, nil); err != nil && gateway.StatusCode(err) != http.StatusNotFound {
		s.store.RestoreItem(removed)
		return err
	}

	s.refreshQuietly(ctx)
	return nil
}

// LocalTotals derives totals from the current rows, reflecting optimistic edits.
func (s *CartService) LocalTotals() domain.CartMeta {
	return s.store.LocalTotals()
}

// PendingQuantity reports an unsent debounced quantity.
func (s *CartService) PendingQuantity(cartItemID int64) (int, bool) {
	return s.quantities.Pending(cartItemID)
}

// Flush sends every debounced quantity that is still waiting and returns
// once all commits are done.
func (s *CartService) Flush() {
	s.quantities.FlushAll()
}

// Close detaches quantity callbacks and aborts an in-flight fetch. Scheduled
// commits still reach the server.
func (s *CartService) Close() {
	s.quantities.Detach()
	s.fetchMu.Lock()
	if s.cancelFetch != nil {
		s.cancelFetch()
		s.cancelFetch = nil
	}
	s.fetchGen++
	s.fetchMu.Unlock()
}

func (s *CartService) putQuantity(ctx context.Context, cartItemID int64, qty int) error {
	req := gateway.Request{
		Method: http.MethodPut,
		Path:   fmt.Sprintf("/api/cart-items/%d", cartItemID),
		Body:   updateQuantityRequest{Quantity: qty},
	}
	return s.api.Do(ctx, req, nil)
}

// refreshQuietly refetches after a successful mutation. A failure here is
// logged only, the mutation itself already went through.
func (s *CartService) refreshQuietly(ctx context.Context) {
	if err := s.Refresh(ctx); err != nil {
		s.log.WithError(err).Warn("cart refresh after mutation failed")
	}
}
