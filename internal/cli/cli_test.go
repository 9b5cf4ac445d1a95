package cli

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/devapi"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/service"
)

func setupBackend(t *testing.T) *devapi.Server {
	t.Helper()
	store := devapi.NewMemoryStore()
	devapi.SeedDemo(store)
	t.Cleanup(func() { store.Close() })
	server := devapi.NewServer(store)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	token, _ := server.IssueToken("u1")
	t.Setenv("STOREFRONT_API_BASE_URLS", ts.URL)
	t.Setenv("STOREFRONT_ACCESS_TOKEN", token)
	t.Setenv("STOREFRONT_USER_ID", "u1")
	t.Setenv("STOREFRONT_LOG_LEVEL", "error")
	return server
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCLI_CartAddAndShow(t *testing.T) {
	setupBackend(t)

	_, err := run(t, "cart", "add", "1", "--qty", "2", "--size", "M")
	require.NoError(t, err)

	out, err := run(t, "cart", "show", "--format", "json")
	require.NoError(t, err)
	var cart domain.CartAggregate
	require.NoError(t, json.Unmarshal([]byte(out), &cart))
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 2, cart.Items[0].Quantity)
	assert.Equal(t, domain.CartStatusOpen, cart.Status)

	out, err = run(t, "cart", "show")
	require.NoError(t, err)
	assert.Contains(t, out, "Linen Shirt [M ]")
	assert.Contains(t, out, "Subtotal: 200.00")
}

func TestCLI_CheckoutLocksCartUntilCancelled(t *testing.T) {
	setupBackend(t)
	_, err := run(t, "cart", "add", "2")
	require.NoError(t, err)

	out, err := run(t, "checkout", "begin")
	require.NoError(t, err)
	assert.Contains(t, out, "Total: 50.00")

	_, err = run(t, "cart", "add", "3")
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrCheckoutConflict)
	assert.Contains(t, err.Error(), "Resume it or cancel it")

	out, err = run(t, "checkout", "cancel")
	require.NoError(t, err)
	assert.Contains(t, out, "Cart (OPEN)")

	_, err = run(t, "cart", "add", "3")
	assert.NoError(t, err)
}

func TestCLI_CheckoutShipAndPay(t *testing.T) {
	server := setupBackend(t)
	_, err := run(t, "cart", "add", "2", "--qty", "2")
	require.NoError(t, err)
	_, err = run(t, "checkout", "begin")
	require.NoError(t, err)

	_, err = run(t, "checkout", "ship",
		"--name", "A Buyer", "--address", "1 Main Road", "--city", "Durban",
		"--province", "KwaZulu-Natal", "--postal-code", "4001", "--phone", "0315550000")
	require.NoError(t, err)

	out, err := run(t, "checkout", "pay", "--number", "4242424242424242", "--holder", "A Buyer",
		"--expiry", "01/2099", "--cvv", "123", "--save")
	require.NoError(t, err)
	assert.Contains(t, out, "confirmed for order")

	assert.Equal(t, devapi.OrderPaid, server.Store().Orders("u1", 1, 1)[0].Status)

	out, err = run(t, "cards", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "**** 4242")
}

func TestCLI_ShipValidatesLocally(t *testing.T) {
	server := setupBackend(t)

	_, err := run(t, "checkout", "ship", "--name", "A", "--postal-code", "12")

	require.Error(t, err)
	assert.Equal(t, service.KindValidation, service.Classify(err))
	assert.Equal(t, 0, server.Calls("GET /api/orders/my"))
}

func TestCLI_RejectsUnknownFormat(t *testing.T) {
	setupBackend(t)

	_, err := run(t, "cart", "show", "--format", "xml")

	assert.Error(t, err)
}

func TestCLI_EventsTailNeedsBrokers(t *testing.T) {
	setupBackend(t)
	t.Setenv("STOREFRONT_KAFKA_BROKERS", "")

	_, err := run(t, "events", "tail")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no kafka brokers configured")
}
