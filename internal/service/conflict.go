package service

import (
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

type ResolveAction string

const (
	ResolveResume ResolveAction = "resume"
	ResolveCancel ResolveAction = "cancel"
)

// ConflictResolver handles a cart that is locked by a checkout: either go back
// to the pending order or revert the checkout and reopen the cart.
type ConflictResolver struct {
	carts    *CartService
	checkout *CheckoutService
	log      logrus.FieldLogger
}

func NewConflictResolver(carts *CartService, checkout *CheckoutService, log logrus.FieldLogger) *ConflictResolver {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	return &ConflictResolver{carts: carts, checkout: checkout, log: log.WithField("component", "conflict")}
}

func (r *ConflictResolver) CanAddItem(status domain.CartStatus) bool {
	return CanAddItem(status)
}

// Resolve applies action. On a failed cancel the cart stays locked.
func (r *ConflictResolver) Resolve(ctx context.Context, action ResolveAction) error {
	switch action {
	case ResolveResume:
		_, err := r.checkout.ResumeCheckout(ctx)
		return err
	case ResolveCancel:
		if err := r.checkout.CancelCheckout(ctx); err != nil {
			r.log.WithError(err).Warn("cancel checkout failed, cart stays locked")
			return err
		}
		if err := r.carts.Refresh(ctx); err != nil {
			return fmt.Errorf("reload cart after cancel: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown resolve action %q", action)
}
