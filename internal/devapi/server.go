// Package devapi is an in-memory commerce backend serving the storefront
// REST API. It backs the CLI's demo mode and the integration tests.
package devapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const refreshCookie = "refresh_token"

type ctxKey int

const userIDKey ctxKey = iota

// Server wires the MemoryStore to HTTP. Test hooks: FailNext queues an error
// status for a route, Calls counts handled requests per route.
type Server struct {
	store   *MemoryStore
	log     logrus.FieldLogger
	timeout time.Duration
	router  chi.Router

	mu            sync.Mutex
	accessTokens  map[string]string // token -> user id
	refreshTokens map[string]string
	failures      map[string][]int
	calls         map[string]int

	registry *prometheus.Registry
	requests *prometheus.CounterVec
}

type Option func(*Server)

func WithLogger(l logrus.FieldLogger) Option {
	return func(s *Server) { s.log = l }
}

func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

func NewServer(store *MemoryStore, opts ...Option) *Server {
	s := &Server{
		store:         store,
		timeout:       30 * time.Second,
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		failures:      make(map[string][]int),
		calls:         make(map[string]int),
		registry:      prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := logrus.New()
		l.Out = io.Discard
		s.log = l
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefront",
		Subsystem: "devapi",
		Name:      "requests_total",
		Help:      "Requests handled by the dev backend, by route and status.",
	}, []string{"route", "status"})
	s.registry.MustRegister(s.requests)
	s.router = s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Store() *MemoryStore {
	return s.store
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.Timeout(s.timeout))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))

	r.Route("/api", func(r chi.Router) {
		s.handle(r, http.MethodPost, "/auth/login", s.login)
		s.handle(r, http.MethodPost, "/auth/refresh", s.refresh)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			s.handle(r, http.MethodGet, "/cart", s.getCart)
			s.handle(r, http.MethodPost, "/cart/revert-checkout", s.revertCheckout)
			s.handle(r, http.MethodPost, "/cart-items", s.addItem)
			s.handle(r, http.MethodPut, "/cart-items/{id}", s.updateItem)
			s.handle(r, http.MethodDelete, "/cart-items/{id}", s.removeItem)

			s.handle(r, http.MethodPost, "/orders", s.createOrder)
			s.handle(r, http.MethodPatch, "/orders", s.snapshotShipping)
			s.handle(r, http.MethodGet, "/orders/my", s.myOrders)
			s.handle(r, http.MethodPatch, "/orders/{id}/shipping", s.updateShipping)

			s.handle(r, http.MethodPost, "/payments/create-intent", s.createIntent)
			s.handle(r, http.MethodPost, "/payments/confirm-intent", s.confirmIntent)

			s.handle(r, http.MethodGet, "/cards", s.listCards)
			s.handle(r, http.MethodPost, "/cards", s.saveCard)
			s.handle(r, http.MethodDelete, "/cards/{id}", s.deleteCard)
		})
	})
	return r
}

// handle registers h under a route key "METHOD /api/path" used by the
// failure queue, the call counters and the metrics.
func (s *Server) handle(r chi.Router, method, pattern string, h http.HandlerFunc) {
	key := method + " /api" + pattern
	r.Method(method, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		defer func() {
			s.requests.WithLabelValues(key, strconv.Itoa(ww.Status())).Inc()
			s.log.WithFields(logrus.Fields{
				"route":      key,
				"status":     ww.Status(),
				"request_id": middleware.GetReqID(req.Context()),
			}).Debug("request handled")
		}()

		if status, ok := s.nextFailure(key); ok {
			respondError(ww, status, "injected_failure", "injected failure")
			return
		}
		h(ww, req)
	}))
}

// FailNext makes the next request to route answer with status.
// route has the form "POST /api/payments/create-intent".
func (s *Server) FailNext(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = append(s.failures[route], status)
}

// Calls returns how many requests reached route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// IssueToken creates an access token and a refresh token for userID.
func (s *Server) IssueToken(userID string) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	access = "at_" + uuid.NewString()
	refresh = "rt_" + uuid.NewString()
	s.accessTokens[access] = userID
	s.refreshTokens[refresh] = userID
	return access, refresh
}

// ExpireAccessTokens invalidates every access token; refresh tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessTokens = make(map[string]string)
}

func (s *Server) nextFailure(key string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[key]++
	queue := s.failures[key]
	if len(queue) == 0 {
		return 0, false
	}
	s.failures[key] = queue[1:]
	return queue[0], true
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		const prefix = "Bearer "
		header := r.Header.Get("Authorization")
		if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}
		s.mu.Lock()
		userID, ok := s.accessTokens[header[len(prefix):]]
		s.mu.Unlock()
		if !ok {
			respondError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey).(string); ok {
		return userID
	}
	return ""
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "user_id is required")
		return
	}
	access, refresh := s.IssueToken(req.UserID)
	http.SetCookie(w, &http.Cookie{Name: refreshCookie, Value: refresh, Path: "/api/auth", HttpOnly: true})
	respondJSON(w, http.StatusOK, tokenResponseDTO{AccessToken: access, UserID: req.UserID})
}

func (s *Server) refresh(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshCookie)
	if err != nil {
		respondError(w, http.StatusUnauthorized, "unauthorized", "missing refresh cookie")
		return
	}
	s.mu.Lock()
	userID, ok := s.refreshTokens[cookie.Value]
	var access string
	if ok {
		access = "at_" + uuid.NewString()
		s.accessTokens[access] = userID
	}
	s.mu.Unlock()
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "invalid refresh token")
		return
	}
	respondJSON(w, http.StatusOK, tokenResponseDTO{AccessToken: access})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logrus.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
