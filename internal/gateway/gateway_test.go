package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/session"
)

type stubTokens struct {
	mu       sync.Mutex
	token    string
	next     string
	err      error
	refreshN int
}

func (s *stubTokens) AccessToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token
}

func (s *stubTokens) Refresh(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshN++
	if s.err != nil {
		return "", s.err
	}
	s.token = s.next
	return s.next, nil
}

func writeJSON(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(body))
}

func newTestGateway(t *testing.T, tokens TokenSource, bases ...string) *Gateway {
	g, err := New(bases, tokens)
	require.NoError(t, err)
	return g
}

func TestSend_AttachesBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		assert.Equal(t, "/api/cart", r.URL.Path)
		writeJSON(w, http.StatusOK, `{"ok":true}`)
	}))
	defer srv.Close()

	g := newTestGateway(t, &stubTokens{token: "tok-1"}, srv.URL)

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, g.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/cart"}, &out))
	assert.True(t, out.OK)
}

func TestSend_KeepsCallerAuthorization(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer caller", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, `{}`)
	}))
	defer srv.Close()

	g := newTestGateway(t, &stubTokens{token: "tok-1"}, srv.URL)
	header := http.Header{}
	header.Set("Authorization", "Bearer caller")

	resp, err := g.Send(context.Background(), Request{Path: "/api/cart", Header: header})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSend_FallsBackToNextBaseOn404(t *testing.T) {
	var primaryHits atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryHits.Add(1)
		writeJSON(w, http.StatusNotFound, `{"message":"no proxy"}`)
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		writeJSON(w, http.StatusOK, `{"served":"fallback"}`)
	}))
	defer fallback.Close()

	g := newTestGateway(t, nil, primary.URL, fallback.URL)

	resp, err := g.Send(context.Background(), Request{Path: "/api/orders/my", Query: map[string][]string{"page": {"2"}}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.URL, fallback.URL)
	assert.Equal(t, int32(1), primaryHits.Load())
}

func TestSend_404OnLastCandidateIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, `{"message":"cart item not found"}`)
	}))
	defer srv.Close()

	g := newTestGateway(t, nil, srv.URL)

	err := g.Do(context.Background(), Request{Method: http.MethodDelete, Path: "/api/cart-items/9"}, nil)
	var he *HTTPStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusNotFound, he.Status)
	assert.Equal(t, "cart item not found", he.Message)
}

func TestSend_AbsoluteURLSkipsCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	}))
	defer srv.Close()

	g := newTestGateway(t, nil, "http://127.0.0.1:1")

	resp, err := g.Send(context.Background(), Request{Path: srv.URL + "/api/cart"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSend_401RefreshesAndRetriesOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if r.Header.Get("Authorization") != "Bearer fresh" {
			writeJSON(w, http.StatusUnauthorized, `{"message":"expired"}`)
			return
		}
		writeJSON(w, http.StatusOK, `{}`)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "stale", next: "fresh"}
	g := newTestGateway(t, tokens, srv.URL)

	resp, err := g.Send(context.Background(), Request{Path: "/api/cart"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, tokens.refreshN)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSend_401StillRejectedAfterRefreshIsSessionExpired(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusUnauthorized, `{"message":"nope"}`)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "stale", next: "fresh"}
	g := newTestGateway(t, tokens, srv.URL)

	err := g.Do(context.Background(), Request{Path: "/api/cart"}, nil)
	assert.True(t, IsSessionExpired(err))
	assert.Equal(t, 1, tokens.refreshN)
	assert.Equal(t, int32(2), hits.Load())
}

func TestSend_RefreshFailureReturnsOriginal401(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusUnauthorized, `{"message":"expired"}`)
	}))
	defer srv.Close()

	tokens := &stubTokens{token: "stale", err: errors.New("refresh rejected")}
	g := newTestGateway(t, tokens, srv.URL)

	resp, err := g.Send(context.Background(), Request{Path: "/api/cart"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
	assert.True(t, IsSessionExpired(resp.Err()))
}

func TestSend_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	const callers = 3
	var refreshCalls atomic.Int32
	var arrived sync.WaitGroup
	arrived.Add(callers)
	release := make(chan struct{})
	go func() {
		arrived.Wait()
		close(release)
	}()

	var retried atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		refreshCalls.Add(1)
		time.Sleep(30 * time.Millisecond)
		writeJSON(w, http.StatusOK, `{"accessToken":"fresh","token":"fresh"}`)
	})
	mux.HandleFunc("/api/cart", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer fresh" {
			retried.Add(1)
			writeJSON(w, http.StatusOK, `{}`)
			return
		}
		arrived.Done()
		<-release
		writeJSON(w, http.StatusUnauthorized, `{"message":"expired"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	sm, err := session.NewManager(srv.URL+"/api/auth/refresh", session.WithSession("stale", "u-1"))
	require.NoError(t, err)
	g := newTestGateway(t, sm, srv.URL)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := g.Send(context.Background(), Request{Path: "/api/cart"})
			assert.NoError(t, err)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), refreshCalls.Load())
	assert.Equal(t, int32(callers), retried.Load())
	assert.Equal(t, "fresh", sm.AccessToken())
}

func TestSend_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	g := newTestGateway(t, nil, url)

	_, err := g.Send(context.Background(), Request{Path: "/api/cart"})
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, 0, StatusCode(err))
}

func TestDecode_NonJSONIsUnexpectedFormat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>index</html>"))
	}))
	defer srv.Close()

	g := newTestGateway(t, nil, srv.URL)

	var out map[string]any
	err := g.Do(context.Background(), Request{Path: "/api/cart"}, &out)
	require.ErrorIs(t, err, ErrUnexpectedResponseFormat)
}

func TestDecode_StatusWithoutMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, `{}`)
	}))
	defer srv.Close()

	g := newTestGateway(t, nil, srv.URL)

	err := g.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/cart-items", Body: map[string]int{"quantity": 1}}, nil)
	var he *HTTPStatusError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "HTTP 409", he.Error())
}

func TestSend_EncodesJSONBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]int
		assert.NoError(t, decodeJSON(r, &body))
		assert.Equal(t, 4, body["quantity"])
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	g := newTestGateway(t, nil, srv.URL)
	err := g.Do(context.Background(), Request{Method: http.MethodPut, Path: "/api/cart-items/1", Body: map[string]int{"quantity": 4}}, nil)
	require.NoError(t, err)
}

func TestMetrics_CountOutcomes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, `{}`)
	}))
	defer srv.Close()

	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	g, err := New([]string{srv.URL}, nil, WithMetrics(m))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err := g.Send(context.Background(), Request{Path: "/api/cart"})
		require.NoError(t, err)
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.Requests.WithLabelValues(http.MethodGet, "200")))
}

func TestBreaker_OpensAfterConsecutiveServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, http.StatusBadGateway, `{"message":"upstream down"}`)
	}))
	defer srv.Close()

	g, err := New([]string{srv.URL}, nil, WithBreaker(BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		resp, err := g.Send(context.Background(), Request{Path: "/api/cart"})
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	}

	_, err = g.Send(context.Background(), Request{Path: "/api/cart"})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, int32(2), hits.Load())
}

func TestNew_RequiresBase(t *testing.T) {
	_, err := New(nil, nil)
	require.Error(t, err)
}

// cancellingTokens cancels the caller's context while it waits on the refresh.
type cancellingTokens struct {
	stubTokens
	cancel context.CancelFunc
}

func (c *cancellingTokens) Refresh(ctx context.Context) (string, error) {
	c.cancel()
	<-ctx.Done()
	return "", ctx.Err()
}

func TestSend_CancelledDuringRefreshIsNotSessionExpiry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, `{"message":"expired"}`)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tokens := &cancellingTokens{stubTokens: stubTokens{token: "stale"}, cancel: cancel}
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	g, err := New([]string{srv.URL}, tokens, WithMetrics(m))
	require.NoError(t, err)

	resp, err := g.Send(ctx, Request{Path: "/api/cart"})

	assert.Nil(t, resp)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsSessionExpired(err))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.Refreshes.WithLabelValues("cancelled")))
	assert.Equal(t, float64(0), testutil.ToFloat64(m.Refreshes.WithLabelValues("failed")))
}
