package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/publisher"
)

// BeginCheckout sends any unsent quantity edits, turns the cart into a
// pending order and locks the cart. The total is the local subtotal unless the server reports one.
func (s *CheckoutService) BeginCheckout(ctx context.Context) (domain.PendingOrder, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	// the order is built from the server cart, so debounced edits go first
	s.flush()

	items := s.store.Items()
	if len(items) == 0 {
		return domain.PendingOrder{}, ErrEmptyCart
	}
	if !CanAddItem(s.store.Status()) {
		return domain.PendingOrder{}, ErrCheckoutConflict
	}

	s.mu.Lock()
	if s.state.HasOrder() {
		s.mu.Unlock()
		return domain.PendingOrder{}, ErrCheckoutConflict
	}
	if s.state.IsTerminal() {
		s.resetLocked()
	}
	s.mu.Unlock()

	total := domain.ComputeMeta(items).Subtotal
	req := gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/orders",
		Header: http.Header{"Idempotency-Key": []string{uuid.NewString()}},
		Body:   createOrderRequest{Items: toOrderItems(items), Total: total},
	}
	var resp orderResponse
	if err := s.api.Do(ctx, req, &resp); err != nil {
		if gateway.StatusCode(err) == http.StatusConflict {
			return domain.PendingOrder{}, fmt.Errorf("%w: %v", ErrCheckoutConflict, err)
		}
		return domain.PendingOrder{}, fmt.Errorf("create order: %w", err)
	}

	order := resp.Order.toDomain()
	if order.Total.IsZero() {
		order.Total = total
	}
	if len(order.Items) == 0 {
		order.Items = items
	}

	s.mu.Lock()
	if err := s.transitionLocked(domain.CheckoutStateOrderCreated); err != nil {
		s.mu.Unlock()
		return domain.PendingOrder{}, err
	}
	s.order = &order
	s.intent = nil
	s.lastErr = nil
	event := s.eventLocked(publisher.EventOrderCreated)
	s.mu.Unlock()

	s.store.SetStatus(domain.CartStatusCheckoutInProgress)
	s.log.WithFields(logrus.Fields{"order_id": order.OrderID, "total": order.Total.StringFixed(2)}).Info("checkout started")
	s.publish(ctx, event)
	return order, nil
}

// ResumeCheckout reattaches the session to the user's latest pending order.
func (s *CheckoutService) ResumeCheckout(ctx context.Context) (domain.PendingOrder, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	req := gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/orders/my",
		Query:  url.Values{"limit": {"1"}, "page": {"1"}},
	}
	var resp myOrdersResponse
	if err := s.api.Do(ctx, req, &resp); err != nil {
		return domain.PendingOrder{}, fmt.Errorf("load pending order: %w", err)
	}
	if len(resp.Orders) == 0 || !isPendingStatus(resp.Orders[0].Status) {
		return domain.PendingOrder{}, ErrNoPendingOrder
	}
	order := resp.Orders[0].toDomain()

	s.mu.Lock()
	sameOrder := s.order != nil && s.order.OrderID == order.OrderID && s.state.HasOrder()
	if !sameOrder {
		s.resetLocked()
		if err := s.transitionLocked(domain.CheckoutStateOrderCreated); err != nil {
			s.mu.Unlock()
			return domain.PendingOrder{}, err
		}
	}
	s.order = &order
	s.mu.Unlock()

	s.store.SetStatus(domain.CartStatusCheckoutInProgress)
	s.log.WithField("order_id", order.OrderID).Info("checkout resumed")
	return order, nil
}

// CancelCheckout reopens the cart on the server and discards the session's
// order. Nothing changes locally if the server call fails.
func (s *CheckoutService) CancelCheckout(ctx context.Context) error {
	s.opMu.Lock()
	defer s.opMu.Unlock()

	req := gateway.Request{Method: http.MethodPost, Path: "/api/cart/revert-checkout"}
	if err := s.api.Do(ctx, req, nil); err != nil {
		return fmt.Errorf("revert checkout: %w", err)
	}

	s.mu.Lock()
	var event *publisher.CheckoutEvent
	if domain.CanTransitionTo(s.state, domain.CheckoutStateCancelled) {
		_ = s.transitionLocked(domain.CheckoutStateCancelled)
		e := s.eventLocked(publisher.EventCheckoutCancelled)
		event = &e
	}
	s.order = nil
	s.intent = nil
	s.mu.Unlock()

	s.store.SetStatus(domain.CartStatusOpen)
	if event != nil {
		s.publish(ctx, *event)
	}
	s.log.Info("checkout cancelled, cart reopened")
	return nil
}

func (s *CheckoutService) resetLocked() {
	s.state = domain.CheckoutStateNoOrder
	s.order = nil
	s.intent = nil
	s.lastErr = nil
}

func isPendingStatus(status string) bool {
	switch status {
	case "PENDING", "pending", "Pending":
		return true
	}
	return false
}
