// Package gateway sends requests to the CommerceAPI. It attaches bearer
// credentials, falls back across an ordered list of base URLs on 404 and
// retries once after a credential refresh on 401.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenSource supplies bearer credentials. Refresh must share one in-flight
// refresh between concurrent callers.
type TokenSource interface {
	AccessToken() string
	Refresh(ctx context.Context) (string, error)
}

type Request struct {
	Method string
	// Path is either "/api/..." (resolved against every base URL in order) or an absolute URL.
	Path   string
	Query  url.Values
	Header http.Header
	// Body is JSON encoded when non-nil.
	Body any
}

type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the breaker; 0 disables it.
	MaxFailures uint32
	OpenTimeout time.Duration
}

func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 5, OpenTimeout: 10 * time.Second}
}

type Gateway struct {
	client  *http.Client
	bases   []string
	tokens  TokenSource
	breaker *gobreaker.CircuitBreaker[*Response]
	metrics *Metrics
	log     logrus.FieldLogger
}

type Option func(*Gateway)

func WithHTTPClient(c *http.Client) Option {
	return func(g *Gateway) { g.client = c }
}

func WithMetrics(m *Metrics) Option {
	return func(g *Gateway) { g.metrics = m }
}

func WithLogger(l logrus.FieldLogger) Option {
	return func(g *Gateway) { g.log = l }
}

func WithBreaker(cfg BreakerConfig) Option {
	return func(g *Gateway) { g.breaker = newBreaker(cfg, g) }
}

// New builds a gateway over the ordered base URL candidates. The first base is
// the same-origin/proxy target, later ones are absolute fallbacks.
func New(bases []string, tokens TokenSource, opts ...Option) (*Gateway, error) {
	if len(bases) == 0 {
		return nil, errors.New("at least one base URL is required")
	}
	cleaned := make([]string, 0, len(bases))
	for _, b := range bases {
		if _, err := url.Parse(b); err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", b, err)
		}
		cleaned = append(cleaned, strings.TrimSuffix(b, "/"))
	}

	g := &Gateway{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		bases:  cleaned,
		tokens: tokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		l := logrus.New()
		l.Out = io.Discard
		g.log = l
	}
	if g.breaker == nil {
		g.breaker = newBreaker(DefaultBreakerConfig(), g)
	}
	return g, nil
}

// Send issues req and returns the (fully read) response. Non-2xx statuses are
// not errors here; callers inspect them or use Response.Decode. A 401 that
// survives the refresh attempt is returned unchanged.
func (g *Gateway) Send(ctx context.Context, req Request) (*Response, error) {
	body, err := encodeBody(req.Body)
	if err != nil {
		return nil, err
	}

	callerAuth := req.Header.Get("Authorization") != ""
	token := ""
	if !callerAuth && g.tokens != nil {
		token = g.tokens.AccessToken()
	}

	resp, err := g.sendCandidates(ctx, req, body, token)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized || callerAuth || g.tokens == nil {
		return resp, nil
	}

	// Another caller may have refreshed while this request was in flight.
	fresh := g.tokens.AccessToken()
	if fresh == "" || fresh == token {
		fresh, err = g.tokens.Refresh(ctx)
		if err != nil {
			if ctx.Err() != nil {
				g.countRefresh("cancelled")
				return nil, ctx.Err()
			}
			g.countRefresh("failed")
			g.log.WithError(err).WithField("path", req.Path).Warn("credential refresh failed")
			return resp, nil
		}
		g.countRefresh("ok")
	}

	return g.sendCandidates(ctx, req, body, fresh)
}

// Do sends req and decodes the JSON answer into out (which may be nil).
func (g *Gateway) Do(ctx context.Context, req Request, out any) error {
	resp, err := g.Send(ctx, req)
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

func (g *Gateway) sendCandidates(ctx context.Context, req Request, body []byte, token string) (*Response, error) {
	targets := g.targets(req)
	for i, target := range targets {
		resp, err := g.sendOnce(ctx, req, target, body, token)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode == http.StatusNotFound && i < len(targets)-1 {
			g.log.WithField("url", target).Debug("not found, trying next base URL")
			continue
		}
		return resp, nil
	}
	return nil, errors.New("no request targets")
}

func (g *Gateway) targets(req Request) []string {
	query := ""
	if len(req.Query) > 0 {
		query = "?" + req.Query.Encode()
	}
	if strings.HasPrefix(req.Path, "http://") || strings.HasPrefix(req.Path, "https://") {
		return []string{req.Path + query}
	}
	out := make([]string, 0, len(g.bases))
	for _, base := range g.bases {
		out = append(out, base+req.Path+query)
	}
	return out
}

// serverFailure lets 5xx answers count against the breaker while still being
// handed back to the caller as a response.
type serverFailure struct {
	resp *Response
}

func (e *serverFailure) Error() string {
	return fmt.Sprintf("server error %d", e.resp.StatusCode)
}

func (g *Gateway) sendOnce(ctx context.Context, req Request, target string, body []byte, token string) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	start := time.Now()
	resp, err := g.breaker.Execute(func() (*Response, error) {
		r, err := g.roundTrip(ctx, method, target, req.Header, body, token)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= 500 {
			return nil, &serverFailure{resp: r}
		}
		return r, nil
	})
	g.observe(method, start, resp, err)

	var sf *serverFailure
	if errors.As(err, &sf) {
		return sf.resp, nil
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, &NetworkError{Method: method, URL: target, Err: ErrCircuitOpen}
	}
	if err != nil {
		return nil, &NetworkError{Method: method, URL: target, Err: err}
	}
	return resp, nil
}

func (g *Gateway) roundTrip(ctx context.Context, method, target string, header http.Header, body []byte, token string) (*Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if token != "" && httpReq.Header.Get("Authorization") == "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
		URL:        target,
	}, nil
}

func (g *Gateway) observe(method string, start time.Time, resp *Response, err error) {
	if g.metrics == nil {
		return
	}
	outcome := "network_error"
	var sf *serverFailure
	switch {
	case errors.As(err, &sf):
		outcome = strconv.Itoa(sf.resp.StatusCode)
	case err == nil && resp != nil:
		outcome = strconv.Itoa(resp.StatusCode)
	}
	g.metrics.Requests.WithLabelValues(method, outcome).Inc()
	g.metrics.LatencyMS.WithLabelValues(method).Observe(float64(time.Since(start).Milliseconds()))
}

func (g *Gateway) countRefresh(result string) {
	if g.metrics != nil {
		g.metrics.Refreshes.WithLabelValues(result).Inc()
	}
}

func newBreaker(cfg BreakerConfig, g *Gateway) *gobreaker.CircuitBreaker[*Response] {
	maxFailures := cfg.MaxFailures
	settings := gobreaker.Settings{
		Name:    "commerce-api",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return maxFailures > 0 && counts.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if g.log != nil {
				g.log.WithFields(logrus.Fields{"breaker": name, "from": from.String(), "to": to.String()}).Warn("circuit breaker state changed")
			}
		},
	}
	return gobreaker.NewCircuitBreaker[*Response](settings)
}

func encodeBody(v any) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal request body: %w", err)
	}
	return data, nil
}
