package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
)

// UpdateShipping validates the form and stores it on the pending order.
// Invalid input never reaches the network.
func (s *CheckoutService) UpdateShipping(ctx context.Context, shipping domain.Shipping) (domain.PendingOrder, error) {
	if err := ValidateShipping(shipping); err != nil {
		return domain.PendingOrder{}, err
	}
	shipping = NormalizeShipping(shipping)

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.RLock()
	if s.order == nil || !s.state.HasOrder() {
		s.mu.RUnlock()
		return domain.PendingOrder{}, ErrNoActiveOrder
	}
	orderID := s.order.OrderID
	s.mu.RUnlock()

	req := gateway.Request{
		Method: http.MethodPatch,
		Path:   fmt.Sprintf("/api/orders/%d/shipping", orderID),
		Body:   shipping,
	}
	if err := s.api.Do(ctx, req, nil); err != nil {
		return domain.PendingOrder{}, fmt.Errorf("update shipping: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.order.Shipping = shipping
	return *s.order, nil
}
