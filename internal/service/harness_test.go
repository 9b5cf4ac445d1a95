package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/cache"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/cart"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/devapi"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/publisher"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/session"
)

const testUser = "u1"

var testNow = time.Date(2026, time.October, 16, 12, 0, 0, 0, time.UTC)

// countingAPI counts every call that would reach the network.
type countingAPI struct {
	next  API
	calls atomic.Int64
}

func (c *countingAPI) Send(ctx context.Context, req gateway.Request) (*gateway.Response, error) {
	c.calls.Add(1)
	return c.next.Send(ctx, req)
}

func (c *countingAPI) Do(ctx context.Context, req gateway.Request, out any) error {
	c.calls.Add(1)
	return c.next.Do(ctx, req, out)
}

type harness struct {
	server   *devapi.Server
	backend  *devapi.MemoryStore
	api      *countingAPI
	sess     *session.Manager
	store    *cart.Store
	carts    *CartService
	checkout *CheckoutService
	cards    *CardService
	resolver *ConflictResolver
	events   *publisher.MemoryPublisher
	logs     *test.Hook
}

func newHarness(t *testing.T, opts ...CartOption) *harness {
	t.Helper()

	backend := devapi.NewMemoryStore()
	devapi.SeedDemo(backend)
	t.Cleanup(func() { backend.Close() })
	server := devapi.NewServer(backend)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	client := &http.Client{Jar: jar, Timeout: 5 * time.Second}
	resp, err := client.Post(ts.URL+"/api/auth/login", "application/json", strings.NewReader(`{"user_id":"`+testUser+`"}`))
	require.NoError(t, err)
	var login struct {
		AccessToken string `json:"accessToken"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&login))
	resp.Body.Close()

	sess, err := session.NewManager(ts.URL+"/api/auth/refresh",
		session.WithHTTPClient(client),
		session.WithSession(login.AccessToken, testUser))
	require.NoError(t, err)
	gw, err := gateway.New([]string{ts.URL}, sess)
	require.NoError(t, err)

	api := &countingAPI{next: gw}
	logger, logs := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	store := cart.NewStore()
	events := &publisher.MemoryPublisher{}
	carts := NewCartService(api, store, logger, opts...)
	t.Cleanup(carts.Close)
	cards := NewCardService(api, cache.NewMemoryCache(), sess.UserID, logger)
	checkout := NewCheckoutService(api, store, logger,
		WithClock(func() time.Time { return testNow }),
		WithPublisher(events),
		WithCardService(cards),
		WithQuantityFlush(carts.Flush),
		WithUserID(sess.UserID))

	return &harness{
		server:   server,
		backend:  backend,
		api:      api,
		sess:     sess,
		store:    store,
		carts:    carts,
		checkout: checkout,
		cards:    cards,
		resolver: NewConflictResolver(carts, checkout, logger),
		events:   events,
		logs:     logs,
	}
}

// seed puts product/quantity pairs into the server cart and loads it.
func (h *harness) seed(t *testing.T, pairs ...int) []domain.CartLineItem {
	t.Helper()
	for i := 0; i+1 < len(pairs); i += 2 {
		_, err := h.backend.AddItem(testUser, int64(pairs[i]), pairs[i+1], "", "")
		require.NoError(t, err)
	}
	require.NoError(t, h.carts.Refresh(context.Background()))
	return h.store.Items()
}

func validShipping() domain.Shipping {
	return domain.Shipping{
		Name:        "Thandi Mokoena",
		Address:     "12 Long Street",
		City:        "Cape Town",
		Province:    "Western Cape",
		PostalCode:  "8001",
		PhoneNumber: "021 555 0123",
	}
}

func validCard() domain.CardDetails {
	return domain.CardDetails{
		Number: "4242 4242 4242 4242",
		Holder: "Thandi Mokoena",
		Expiry: "12/2028",
		CVV:    "123",
	}
}
