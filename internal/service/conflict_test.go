package service

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/devapi"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/publisher"
)

func TestResolve_CancelReopensCart(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 1, 2, 2, 1)
	_, err := h.checkout.BeginCheckout(context.Background())
	require.NoError(t, err)
	assert.False(t, h.resolver.CanAddItem(h.store.Status()))

	require.NoError(t, h.resolver.Resolve(context.Background(), ResolveCancel))

	assert.Equal(t, domain.CartStatusOpen, h.store.Status())
	assert.True(t, h.resolver.CanAddItem(h.store.Status()))
	assert.Len(t, h.store.Items(), 2)
	assert.Equal(t, domain.CheckoutStateCancelled, h.checkout.State())
	assert.Equal(t, devapi.OrderCancelled, h.backend.Orders(testUser, 1, 1)[0].Status)
	assert.Contains(t, h.events.Types(), publisher.EventCheckoutCancelled)

	require.NoError(t, h.carts.AddItem(context.Background(), AddItemInput{ProductID: 3, Quantity: 1}))
}

func TestResolve_CancelFailureKeepsCartLocked(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 1, 1)
	_, err := h.checkout.BeginCheckout(context.Background())
	require.NoError(t, err)
	h.server.FailNext("POST /api/cart/revert-checkout", http.StatusInternalServerError)

	err = h.resolver.Resolve(context.Background(), ResolveCancel)

	require.Error(t, err)
	assert.Equal(t, domain.CartStatusCheckoutInProgress, h.store.Status())
	assert.Equal(t, domain.CheckoutStateOrderCreated, h.checkout.State())
	_, ok := h.checkout.Order()
	assert.True(t, ok)
}

func TestResolve_Resume(t *testing.T) {
	h := newHarness(t)
	h.seed(t, 1, 1)
	serverOrder, err := h.backend.CreateOrder(testUser, "")
	require.NoError(t, err)

	require.NoError(t, h.resolver.Resolve(context.Background(), ResolveResume))

	order, ok := h.checkout.Order()
	require.True(t, ok)
	assert.Equal(t, serverOrder.ID, order.OrderID)
}

func TestResolve_UnknownAction(t *testing.T) {
	h := newHarness(t)

	err := h.resolver.Resolve(context.Background(), ResolveAction("later"))

	assert.Error(t, err)
}
