package service

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/publisher"
)

// Pay runs one payment attempt for the pending order: create an intent,
// confirm it, then clear the cart. Any failure before confirmation moves the
// session into FAILED; a later Pay starts a new attempt with a new intent.
func (s *CheckoutService) Pay(ctx context.Context, card domain.CardDetails) (domain.PaymentIntent, error) {
	if err := ValidateCard(card, s.now()); err != nil {
		return domain.PaymentIntent{}, err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	if s.order == nil {
		s.mu.Unlock()
		return domain.PaymentIntent{}, ErrNoActiveOrder
	}
	if !domain.CanTransitionTo(s.state, domain.CheckoutStateIntentCreated) {
		state := s.state
		s.mu.Unlock()
		return domain.PaymentIntent{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, state, domain.CheckoutStateIntentCreated)
	}
	order := *s.order
	s.intent = nil
	s.mu.Unlock()

	intent, err := s.createIntent(ctx, order.OrderID)
	if err != nil {
		s.fail(ctx, err)
		return domain.PaymentIntent{}, fmt.Errorf("create payment intent: %w", err)
	}

	s.mu.Lock()
	s.intent = &intent
	err = s.transitionLocked(domain.CheckoutStateIntentCreated)
	if err == nil {
		err = s.transitionLocked(domain.CheckoutStateConfirming)
	}
	s.mu.Unlock()
	if err != nil {
		return domain.PaymentIntent{}, err
	}

	if err := s.confirmIntent(ctx, intent); err != nil {
		s.fail(ctx, err)
		return domain.PaymentIntent{}, fmt.Errorf("confirm payment: %w", err)
	}
	intent.Status = domain.IntentStatusConfirmed

	s.snapshotShipping(ctx, order)
	if card.SaveForReuse && s.cards != nil {
		if _, err := s.cards.SaveCard(ctx, card); err != nil {
			s.log.WithError(err).Warn("saving card after payment failed")
		}
	}

	s.store.Clear()

	s.mu.Lock()
	s.intent = &intent
	if err := s.transitionLocked(domain.CheckoutStatePaid); err != nil {
		s.mu.Unlock()
		return domain.PaymentIntent{}, err
	}
	event := s.eventLocked(publisher.EventPaymentConfirmed)
	s.mu.Unlock()

	s.log.WithFields(logrus.Fields{
		"order_id":          order.OrderID,
		"payment_intent_id": intent.PaymentIntentID,
	}).Info("payment confirmed")
	s.publish(ctx, event)
	return intent, nil
}

func (s *CheckoutService) createIntent(ctx context.Context, orderID int64) (domain.PaymentIntent, error) {
	req := gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/payments/create-intent",
		Header: http.Header{"Idempotency-Key": []string{uuid.NewString()}},
		Body:   createIntentRequest{OrderID: orderID},
	}
	var resp createIntentResponse
	if err := s.api.Do(ctx, req, &resp); err != nil {
		return domain.PaymentIntent{}, err
	}
	if resp.PaymentIntentID == "" {
		return domain.PaymentIntent{}, fmt.Errorf("%w: missing payment_intent_id", gateway.ErrUnexpectedResponseFormat)
	}
	return domain.PaymentIntent{
		PaymentIntentID: resp.PaymentIntentID,
		OrderID:         orderID,
		Status:          domain.IntentStatusCreated,
	}, nil
}

func (s *CheckoutService) confirmIntent(ctx context.Context, intent domain.PaymentIntent) error {
	req := gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/payments/confirm-intent",
		Body: confirmIntentRequest{
			OrderID:         intent.OrderID,
			PaymentIntentID: intent.PaymentIntentID,
		},
	}
	return s.api.Do(ctx, req, nil)
}

// snapshotShipping copies the shipping details onto the order record. The
// payment already succeeded, so failures are only logged.
func (s *CheckoutService) snapshotShipping(ctx context.Context, order domain.PendingOrder) {
	if order.Shipping == (domain.Shipping{}) {
		return
	}
	req := gateway.Request{
		Method: http.MethodPatch,
		Path:   "/api/orders",
		Body:   shippingSnapshotRequest{OrderID: order.OrderID, Shipping: order.Shipping},
	}
	if err := s.api.Do(ctx, req, nil); err != nil {
		s.log.WithError(err).WithField("order_id", order.OrderID).Warn("shipping snapshot failed")
	}
}
