package devapi

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

func setupStore(t *testing.T) *MemoryStore {
	store := NewMemoryStore()
	SeedDemo(store)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestMemoryStore_AddItemMergesSameVariant(t *testing.T) {
	store := setupStore(t)

	first, err := store.AddItem("u1", 1, 1, "M", "ff0000")
	require.NoError(t, err)
	second, err := store.AddItem("u1", 1, 2, "M", "ff0000")
	require.NoError(t, err)
	other, err := store.AddItem("u1", 1, 1, "L", "ff0000")
	require.NoError(t, err)

	assert.Equal(t, first.CartItemID, second.CartItemID)
	assert.Equal(t, 3, second.Quantity)
	assert.NotEqual(t, first.CartItemID, other.CartItemID)

	view := store.Cart("u1")
	assert.Len(t, view.Items, 2)
	assert.Equal(t, 4, view.Meta.TotalItems)
	assert.True(t, decimal.NewFromInt(400).Equal(view.Meta.Subtotal))
}

func TestMemoryStore_AddItemErrors(t *testing.T) {
	store := setupStore(t)

	_, err := store.AddItem("u1", 99, 1, "", "")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = store.AddItem("u1", 4, 3, "", "")
	assert.ErrorIs(t, err, ErrInsufficientStock)

	_, err = store.AddItem("u1", 1, 0, "", "")
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestMemoryStore_CreateOrderReservesAndLocks(t *testing.T) {
	store := setupStore(t)
	_, err := store.AddItem("u1", 1, 2, "", "")
	require.NoError(t, err)
	_, err = store.AddItem("u1", 2, 1, "", "")
	require.NoError(t, err)

	order, err := store.CreateOrder("u1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, OrderPending, order.Status)
	assert.True(t, decimal.NewFromInt(250).Equal(order.Total))

	p, _ := store.Product(1)
	assert.Equal(t, 2, p.Reserved)
	assert.Equal(t, domain.CartStatusCheckoutInProgress, store.Cart("u1").Status)

	_, err = store.AddItem("u1", 2, 1, "", "")
	assert.ErrorIs(t, err, ErrCartLocked)

	again, err := store.CreateOrder("u1", "key-1")
	require.NoError(t, err)
	assert.Equal(t, order.ID, again.ID)

	_, err = store.CreateOrder("u1", "key-2")
	assert.ErrorIs(t, err, ErrCartLocked)
}

func TestMemoryStore_RevertCheckoutReleasesStock(t *testing.T) {
	store := setupStore(t)
	_, err := store.AddItem("u1", 1, 2, "", "")
	require.NoError(t, err)
	order, err := store.CreateOrder("u1", "")
	require.NoError(t, err)

	view := store.RevertCheckout("u1")
	assert.Equal(t, domain.CartStatusOpen, view.Status)
	assert.Len(t, view.Items, 1)

	p, _ := store.Product(1)
	assert.Equal(t, 0, p.Reserved)
	orders := store.Orders("u1", 1, 1)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)
	assert.Equal(t, OrderCancelled, orders[0].Status)
}

func TestMemoryStore_ConfirmIntentDeductsStock(t *testing.T) {
	store := setupStore(t)
	_, err := store.AddItem("u1", 1, 2, "", "")
	require.NoError(t, err)
	order, err := store.CreateOrder("u1", "")
	require.NoError(t, err)

	intent, err := store.CreateIntent("u1", order.ID, "k")
	require.NoError(t, err)
	same, err := store.CreateIntent("u1", order.ID, "k")
	require.NoError(t, err)
	assert.Equal(t, intent.ID, same.ID)

	_, err = store.ConfirmIntent("u1", order.ID, intent.ID)
	require.NoError(t, err)

	p, _ := store.Product(1)
	assert.Equal(t, 3, p.Stock)
	assert.Equal(t, 0, p.Reserved)
	view := store.Cart("u1")
	assert.Empty(t, view.Items)
	assert.Equal(t, domain.CartStatusOpen, view.Status)

	_, err = store.ConfirmIntent("u1", order.ID, intent.ID)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestMemoryStore_ConfirmIntentUnknown(t *testing.T) {
	store := setupStore(t)
	_, err := store.AddItem("u1", 1, 1, "", "")
	require.NoError(t, err)
	order, err := store.CreateOrder("u1", "")
	require.NoError(t, err)

	_, err = store.ConfirmIntent("u1", order.ID, "pi_missing")
	assert.ErrorIs(t, err, ErrIntentNotFound)
	_, err = store.ConfirmIntent("u2", order.ID, "pi_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestMemoryStore_ExpireReservations(t *testing.T) {
	store := setupStore(t)
	now := time.Now()
	store.SetClock(func() time.Time { return now })

	_, err := store.AddItem("u1", 1, 2, "", "")
	require.NoError(t, err)
	_, err = store.CreateOrder("u1", "")
	require.NoError(t, err)

	assert.Equal(t, 0, store.ExpireReservations())

	store.SetClock(func() time.Time { return now.Add(ReservationTTL + time.Second) })
	assert.Equal(t, 1, store.ExpireReservations())

	p, _ := store.Product(1)
	assert.Equal(t, 0, p.Reserved)
	assert.Equal(t, domain.CartStatusOpen, store.Cart("u1").Status)
	assert.Equal(t, OrderExpired, store.Orders("u1", 1, 1)[0].Status)
}

func TestMemoryStore_OrdersPagination(t *testing.T) {
	store := setupStore(t)
	for i := 0; i < 3; i++ {
		_, err := store.AddItem("u1", 2, 1, "", "")
		require.NoError(t, err)
		_, err = store.CreateOrder("u1", "")
		require.NoError(t, err)
		store.RevertCheckout("u1")
	}

	page1 := store.Orders("u1", 2, 1)
	page2 := store.Orders("u1", 2, 2)
	require.Len(t, page1, 2)
	require.Len(t, page2, 1)
	assert.Greater(t, page1[0].ID, page1[1].ID)
	assert.Greater(t, page1[1].ID, page2[0].ID)
	assert.Empty(t, store.Orders("u1", 2, 3))
}

func TestMemoryStore_Cards(t *testing.T) {
	store := setupStore(t)
	card := store.SaveCard("u1", "A Holder", "4242", "12/2030")
	assert.NotEmpty(t, card.ID)
	assert.Len(t, store.Cards("u1"), 1)
	assert.Empty(t, store.Cards("u2"))

	require.NoError(t, store.DeleteCard("u1", card.ID))
	assert.ErrorIs(t, store.DeleteCard("u1", card.ID), ErrCardNotFound)
}
