// Package storefront assembles the client components from a Config.
package storefront

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/cache"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/cart"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/config"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/publisher"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/service"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/session"
)

type App struct {
	Config   *config.Config
	Log      logrus.FieldLogger
	Session  *session.Manager
	Gateway  *gateway.Gateway
	Store    *cart.Store
	Carts    *service.CartService
	Checkout *service.CheckoutService
	Cards    *service.CardService
	Resolver *service.ConflictResolver

	events  publisher.Publisher
	closers []func() error
}

// New wires the client. reg may be nil, in which case gateway metrics are
// not collected.
func New(cfg *config.Config, log logrus.FieldLogger, reg prometheus.Registerer) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	app := &App{Config: cfg, Log: log}

	sess, err := session.NewManager(cfg.RefreshURL(),
		session.WithLogger(log),
		session.WithSession(cfg.Auth.AccessToken, cfg.Auth.UserID))
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	sess.OnExpired(func(cause error) {
		log.WithError(cause).Error("session expired, sign in again")
	})
	app.Session = sess

	gwOpts := []gateway.Option{
		gateway.WithHTTPClient(&http.Client{
			Timeout:   cfg.API.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
		gateway.WithLogger(log),
		gateway.WithBreaker(gateway.BreakerConfig{
			MaxFailures: cfg.Breaker.MaxFailures,
			OpenTimeout: cfg.Breaker.OpenTimeout,
		}),
	}
	if reg != nil {
		gwOpts = append(gwOpts, gateway.WithMetrics(gateway.NewMetrics(reg)))
	}
	gw, err := gateway.New(cfg.API.BaseURLs, sess, gwOpts...)
	if err != nil {
		return nil, fmt.Errorf("create gateway: %w", err)
	}
	app.Gateway = gw

	var cardCache cache.CardCache = cache.NewMemoryCache()
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		app.closers = append(app.closers, client.Close)
		cardCache = cache.NewRedisCache(client)
	}

	app.events = publisher.NopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		app.events = publisher.NewKafkaPublisher(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
	}
	app.closers = append(app.closers, app.events.Close)

	app.Store = cart.NewStore()
	app.Carts = service.NewCartService(gw, app.Store, log,
		service.WithQuantityDebounce(cfg.Cart.QuantityDebounce))
	app.Cards = service.NewCardService(gw, cardCache, sess.UserID, log)
	app.Checkout = service.NewCheckoutService(gw, app.Store, log,
		service.WithPublisher(app.events),
		service.WithCardService(app.Cards),
		service.WithQuantityFlush(app.Carts.Flush),
		service.WithUserID(sess.UserID))
	app.Resolver = service.NewConflictResolver(app.Carts, app.Checkout, log)
	return app, nil
}

// Close sends unsent quantity edits, waits for their commits and releases
// connections.
func (a *App) Close() error {
	a.Carts.Flush()
	a.Carts.Close()
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
