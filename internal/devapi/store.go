package devapi

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

const (
	// ReservationTTL is how long a pending order holds its stock.
	ReservationTTL = 30 * time.Minute

	// CleanupInterval is how often expired reservations are released.
	CleanupInterval = 30 * time.Second
)

var (
	ErrProductNotFound   = errors.New("product not found")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrIntentNotFound    = errors.New("payment intent not found")
	ErrCardNotFound      = errors.New("card not found")
	ErrCartLocked        = errors.New("cart is locked by a pending checkout")
	ErrCartEmpty         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidStatus     = errors.New("invalid status for this operation")
)

const (
	OrderPending   = "PENDING"
	OrderPaid      = "PAID"
	OrderCancelled = "CANCELLED"
	OrderExpired   = "EXPIRED"
)

type Product struct {
	ID          int64
	Name        string
	Description string
	Price       decimal.Decimal
	Stock       int
	Reserved    int
	ImageURL    string
}

// Available is stock not held by a pending order.
func (p Product) Available() int {
	return p.Stock - p.Reserved
}

type cartRow struct {
	ID        int64
	ProductID int64
	Quantity  int
	Size      string
	ColorHex  string
}

type userCart struct {
	id     int64
	status domain.CartStatus
	rows   []cartRow
}

type OrderLine struct {
	CartItemID int64
	ProductID  int64
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	Size       string
	ColorHex   string
}

type Order struct {
	ID             int64
	UserID         string
	Status         string
	Total          decimal.Decimal
	Items          []OrderLine
	Shipping       domain.Shipping
	CreatedAt      time.Time
	ExpiresAt      time.Time
	idempotencyKey string
}

type Intent struct {
	ID             string
	OrderID        int64
	Status         domain.IntentStatus
	idempotencyKey string
}

// CartView is the cart as the API returns it.
type CartView struct {
	ID     int64
	Status domain.CartStatus
	Items  []domain.CartLineItem
	Meta   domain.CartMeta
}

// MemoryStore keeps the whole backend state in memory.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[int64]*Product
	carts    map[string]*userCart
	orders   map[int64]*Order
	intents  map[string]*Intent
	cards    map[string][]domain.SavedCard
	nextID   int64
	ttl      time.Duration
	now      func() time.Time
	decider  ChargeDecider

	stopCleanup chan struct{}
	wg          sync.WaitGroup
}

func NewMemoryStore() *MemoryStore {
	s := &MemoryStore{
		products:    make(map[int64]*Product),
		carts:       make(map[string]*userCart),
		orders:      make(map[int64]*Order),
		intents:     make(map[string]*Intent),
		cards:       make(map[string][]domain.SavedCard),
		ttl:         ReservationTTL,
		now:         time.Now,
		decider:     ApproveAll{},
		stopCleanup: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop()

	return s
}

func (s *MemoryStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ExpireReservations()
		case <-s.stopCleanup:
			return
		}
	}
}

// ExpireReservations releases stock of pending orders past their TTL and
// reopens the owners' carts.
func (s *MemoryStore) ExpireReservations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	expired := 0
	for _, o := range s.orders {
		if o.Status == OrderPending && now.After(o.ExpiresAt) {
			s.releaseLocked(o)
			o.Status = OrderExpired
			s.cartLocked(o.UserID).status = domain.CartStatusOpen
			expired++
		}
	}
	return expired
}

func (s *MemoryStore) SetProduct(p Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.products[p.ID] = &cp
}

func (s *MemoryStore) Product(id int64) (Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.products[id]
	if !ok {
		return Product{}, false
	}
	return *p, true
}

func (s *MemoryStore) Cart(userID string) CartView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cartViewLocked(s.cartLocked(userID))
}

func (s *MemoryStore) AddItem(userID string, productID int64, qty int, size, colorHex string) (domain.CartLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	if c.status == domain.CartStatusCheckoutInProgress {
		return domain.CartLineItem{}, ErrCartLocked
	}
	if qty < 1 {
		return domain.CartLineItem{}, ErrInvalidQuantity
	}
	p, ok := s.products[productID]
	if !ok {
		return domain.CartLineItem{}, ErrProductNotFound
	}

	for i := range c.rows {
		row := &c.rows[i]
		if row.ProductID == productID && row.Size == size && row.ColorHex == colorHex {
			if row.Quantity+qty > p.Available() {
				return domain.CartLineItem{}, ErrInsufficientStock
			}
			row.Quantity += qty
			return s.lineLocked(*row), nil
		}
	}
	if qty > p.Available() {
		return domain.CartLineItem{}, ErrInsufficientStock
	}
	row := cartRow{ID: s.newIDLocked(), ProductID: productID, Quantity: qty, Size: size, ColorHex: colorHex}
	c.rows = append(c.rows, row)
	return s.lineLocked(row), nil
}

func (s *MemoryStore) UpdateItem(userID string, itemID int64, qty int) (domain.CartLineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	if c.status == domain.CartStatusCheckoutInProgress {
		return domain.CartLineItem{}, ErrCartLocked
	}
	if qty < 1 {
		return domain.CartLineItem{}, ErrInvalidQuantity
	}
	for i := range c.rows {
		row := &c.rows[i]
		if row.ID != itemID {
			continue
		}
		if p, ok := s.products[row.ProductID]; ok && qty > p.Available() {
			return domain.CartLineItem{}, ErrInsufficientStock
		}
		row.Quantity = qty
		return s.lineLocked(*row), nil
	}
	return domain.CartLineItem{}, ErrItemNotFound
}

func (s *MemoryStore) RemoveItem(userID string, itemID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.cartLocked(userID)
	if c.status == domain.CartStatusCheckoutInProgress {
		return ErrCartLocked
	}
	for i, row := range c.rows {
		if row.ID == itemID {
			c.rows = append(c.rows[:i], c.rows[i+1:]...)
			return nil
		}
	}
	return ErrItemNotFound
}

// CreateOrder turns the cart into a pending order, reserving its stock and
// locking the cart. A repeated idempotency key returns the first order.
func (s *MemoryStore) CreateOrder(userID, idempotencyKey string) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if idempotencyKey != "" {
		for _, o := range s.orders {
			if o.UserID == userID && o.idempotencyKey == idempotencyKey {
				return *o, nil
			}
		}
	}

	c := s.cartLocked(userID)
	if c.status == domain.CartStatusCheckoutInProgress {
		return Order{}, ErrCartLocked
	}
	if len(c.rows) == 0 {
		return Order{}, ErrCartEmpty
	}

	// First pass: validate all items have sufficient stock
	for _, row := range c.rows {
		p, ok := s.products[row.ProductID]
		if !ok {
			return Order{}, ErrProductNotFound
		}
		if p.Available() < row.Quantity {
			return Order{}, ErrInsufficientStock
		}
	}

	now := s.now()
	o := &Order{
		ID:             s.newIDLocked(),
		UserID:         userID,
		Status:         OrderPending,
		Total:          decimal.Zero,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
		idempotencyKey: idempotencyKey,
	}
	for _, row := range c.rows {
		p := s.products[row.ProductID]
		p.Reserved += row.Quantity
		o.Items = append(o.Items, OrderLine{
			CartItemID: row.ID,
			ProductID:  row.ProductID,
			Name:       p.Name,
			Quantity:   row.Quantity,
			UnitPrice:  p.Price,
			Size:       row.Size,
			ColorHex:   row.ColorHex,
		})
		o.Total = o.Total.Add(p.Price.Mul(decimal.NewFromInt(int64(row.Quantity))))
	}
	s.orders[o.ID] = o
	c.status = domain.CartStatusCheckoutInProgress
	return *o, nil
}

// RevertCheckout cancels the user's pending order and reopens the cart.
// Reverting an open cart is a no-op.
func (s *MemoryStore) RevertCheckout(userID string) CartView {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range s.orders {
		if o.UserID == userID && o.Status == OrderPending {
			s.releaseLocked(o)
			o.Status = OrderCancelled
		}
	}
	c := s.cartLocked(userID)
	c.status = domain.CartStatusOpen
	return s.cartViewLocked(c)
}

func (s *MemoryStore) UpdateShipping(userID string, orderID int64, shipping domain.Shipping) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.orderLocked(userID, orderID)
	if err != nil {
		return Order{}, err
	}
	if o.Status != OrderPending {
		return Order{}, ErrInvalidStatus
	}
	o.Shipping = shipping
	return *o, nil
}

// SnapshotShipping stores shipping on an order in any status.
func (s *MemoryStore) SnapshotShipping(userID string, orderID int64, shipping domain.Shipping) (Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.orderLocked(userID, orderID)
	if err != nil {
		return Order{}, err
	}
	o.Shipping = shipping
	return *o, nil
}

// Orders lists the user's orders, newest first.
func (s *MemoryStore) Orders(userID string, limit, page int) []Order {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Order
	for _, o := range s.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })

	if limit < 1 {
		limit = 10
	}
	if page < 1 {
		page = 1
	}
	start := (page - 1) * limit
	if start >= len(out) {
		return []Order{}
	}
	end := start + limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end]
}

// CreateIntent opens a payment intent for a pending order. A repeated
// idempotency key returns the first intent.
func (s *MemoryStore) CreateIntent(userID string, orderID int64, idempotencyKey string) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.orderLocked(userID, orderID)
	if err != nil {
		return Intent{}, err
	}
	if o.Status != OrderPending {
		return Intent{}, ErrInvalidStatus
	}
	if idempotencyKey != "" {
		for _, in := range s.intents {
			if in.OrderID == orderID && in.idempotencyKey == idempotencyKey {
				return *in, nil
			}
		}
	}
	in := &Intent{
		ID:             "pi_" + uuid.NewString(),
		OrderID:        orderID,
		Status:         domain.IntentStatusCreated,
		idempotencyKey: idempotencyKey,
	}
	s.intents[in.ID] = in
	return *in, nil
}

// ConfirmIntent charges the order: stock is deducted, the order is paid and
// the cart is emptied and reopened. A declined charge fails the intent and
// leaves the order pending.
func (s *MemoryStore) ConfirmIntent(userID string, orderID int64, intentID string) (Intent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, err := s.orderLocked(userID, orderID)
	if err != nil {
		return Intent{}, err
	}
	in, ok := s.intents[intentID]
	if !ok || in.OrderID != orderID {
		return Intent{}, ErrIntentNotFound
	}
	if in.Status != domain.IntentStatusCreated || o.Status != OrderPending {
		return Intent{}, ErrInvalidStatus
	}
	if approved, reason := s.decider.Decide(orderID); !approved {
		in.Status = domain.IntentStatusFailed
		return *in, fmt.Errorf("%w: %s", ErrPaymentDeclined, reason)
	}

	for _, line := range o.Items {
		if p, ok := s.products[line.ProductID]; ok {
			p.Stock -= line.Quantity
			p.Reserved -= line.Quantity
		}
	}
	in.Status = domain.IntentStatusConfirmed
	o.Status = OrderPaid

	c := s.cartLocked(userID)
	c.rows = nil
	c.status = domain.CartStatusOpen
	return *in, nil
}

func (s *MemoryStore) Cards(userID string) []domain.SavedCard {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.SavedCard, len(s.cards[userID]))
	copy(out, s.cards[userID])
	return out
}

func (s *MemoryStore) SaveCard(userID, holder, last4, expiry string) domain.SavedCard {
	s.mu.Lock()
	defer s.mu.Unlock()
	card := domain.SavedCard{
		ID:     "card_" + uuid.NewString()[:8],
		Holder: holder,
		Last4:  last4,
		Expiry: expiry,
	}
	s.cards[userID] = append(s.cards[userID], card)
	return card
}

func (s *MemoryStore) DeleteCard(userID, cardID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cards := s.cards[userID]
	for i, c := range cards {
		if c.ID == cardID {
			s.cards[userID] = append(cards[:i], cards[i+1:]...)
			return nil
		}
	}
	return ErrCardNotFound
}

// Close stops the background cleanup and waits for it to finish
func (s *MemoryStore) Close() error {
	close(s.stopCleanup)
	s.wg.Wait()
	return nil
}

func (s *MemoryStore) cartLocked(userID string) *userCart {
	c, ok := s.carts[userID]
	if !ok {
		c = &userCart{id: s.newIDLocked(), status: domain.CartStatusOpen}
		s.carts[userID] = c
	}
	return c
}

func (s *MemoryStore) orderLocked(userID string, orderID int64) (*Order, error) {
	o, ok := s.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *MemoryStore) releaseLocked(o *Order) {
	for _, line := range o.Items {
		if p, ok := s.products[line.ProductID]; ok {
			p.Reserved -= line.Quantity
		}
	}
}

func (s *MemoryStore) lineLocked(row cartRow) domain.CartLineItem {
	item := domain.CartLineItem{
		CartItemID: row.ID,
		ProductID:  row.ProductID,
		Quantity:   row.Quantity,
		Size:       row.Size,
		ColorHex:   row.ColorHex,
	}
	if p, ok := s.products[row.ProductID]; ok {
		item.Name = p.Name
		item.Description = p.Description
		item.UnitPrice = p.Price
		item.StockAvailable = p.Available()
		item.ImageURL = p.ImageURL
	}
	return item
}

func (s *MemoryStore) cartViewLocked(c *userCart) CartView {
	items := make([]domain.CartLineItem, 0, len(c.rows))
	for _, row := range c.rows {
		items = append(items, s.lineLocked(row))
	}
	return CartView{
		ID:     c.id,
		Status: c.status,
		Items:  items,
		Meta:   domain.ComputeMeta(items),
	}
}

func (s *MemoryStore) newIDLocked() int64 {
	s.nextID++
	return s.nextID
}

// SetClock replaces the time source used for reservations.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
