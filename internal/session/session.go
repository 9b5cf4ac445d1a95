// Package session keeps the storefront's bearer credential and refreshes it.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

var ErrRefreshFailed = errors.New("credential refresh failed")

const refreshKey = "refresh"

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
	Token       string `json:"token"`
}

// Manager is the explicit replacement for process-wide auth state. Refresh
// calls are collapsed so that concurrent callers share one request and one result.
type Manager struct {
	client     *http.Client
	refreshURL string
	timeout    time.Duration
	log        logrus.FieldLogger

	mu     sync.RWMutex
	token  string
	userID string

	sfg singleflight.Group // one refresh in flight

	listenersMu sync.Mutex
	listeners   map[int]func(error)
	nextID      int
}

type Option func(*Manager)

func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.client = c }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l }
}

func WithSession(token, userID string) Option {
	return func(m *Manager) {
		m.token = token
		m.userID = userID
	}
}

func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.timeout = d }
}

// NewManager creates a manager that refreshes against refreshURL
// (e.g. https://shop.example.com/api/auth/refresh). The default client keeps a
// cookie jar so the refresh cookie is sent along.
func NewManager(refreshURL string, opts ...Option) (*Manager, error) {
	if refreshURL == "" {
		return nil, errors.New("refresh URL is required")
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	m := &Manager{
		client: &http.Client{
			Timeout:   10 * time.Second,
			Jar:       jar,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		refreshURL: refreshURL,
		timeout:    10 * time.Second,
		listeners:  make(map[int]func(error)),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		l := logrus.New()
		l.Out = io.Discard
		m.log = l
	}
	return m, nil
}

func (m *Manager) AccessToken() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.token
}

func (m *Manager) UserID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.userID
}

func (m *Manager) IsAuthenticated() bool {
	return m.AccessToken() != ""
}

// SetSession stores credentials obtained from a sign-in.
func (m *Manager) SetSession(token, userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	m.userID = userID
}

// Clear drops the credential without notifying expiry listeners (sign-out).
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}

// OnExpired registers fn to be called when a refresh fails. The returned func unregisters it.
func (m *Manager) OnExpired(fn func(error)) func() {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		delete(m.listeners, id)
	}
}

// Refresh obtains a new access token. Concurrent callers wait on the same
// request and receive the same token or the same error.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	ch := m.sfg.DoChan(refreshKey, func() (interface{}, error) {
		// the shared refresh must not die with whichever caller started it
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.timeout)
		defer cancel()

		token, err := m.requestToken(refreshCtx)
		if err != nil {
			m.expire(err)
			return "", err
		}
		m.mu.Lock()
		m.token = token
		m.mu.Unlock()
		m.log.Debug("access token refreshed")
		return token, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (m *Manager) requestToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.refreshURL, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrRefreshFailed, resp.StatusCode)
	}
	if mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type")); mediaType != "application/json" {
		return "", fmt.Errorf("%w: unexpected content type %q", ErrRefreshFailed, resp.Header.Get("Content-Type"))
	}

	var payload refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrRefreshFailed, err)
	}
	token := payload.AccessToken
	if token == "" {
		token = payload.Token
	}
	if token == "" {
		return "", fmt.Errorf("%w: no token in response", ErrRefreshFailed)
	}
	return token, nil
}

func (m *Manager) expire(cause error) {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()

	m.log.WithError(cause).Warn("session expired")

	m.listenersMu.Lock()
	fns := make([]func(error), 0, len(m.listeners))
	for _, fn := range m.listeners {
		fns = append(fns, fn)
	}
	m.listenersMu.Unlock()

	for _, fn := range fns {
		fn(cause)
	}
}
