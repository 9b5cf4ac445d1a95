package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/cart"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/publisher"
)

// CheckoutService drives one checkout session: order creation, shipping,
// payment intent and confirmation.
type CheckoutService struct {
	api    API
	store  *cart.Store
	cards  *CardService
	flush  func()
	events publisher.Publisher
	userID func() string
	now    func() time.Time
	log    logrus.FieldLogger

	opMu sync.Mutex // one checkout operation at a time

	mu      sync.RWMutex
	state   domain.CheckoutState
	order   *domain.PendingOrder
	intent  *domain.PaymentIntent
	lastErr error
}

type CheckoutOption func(*CheckoutService)

func WithClock(now func() time.Time) CheckoutOption {
	return func(s *CheckoutService) { s.now = now }
}

func WithPublisher(p publisher.Publisher) CheckoutOption {
	return func(s *CheckoutService) { s.events = p }
}

// WithCardService enables saving cards after a successful payment.
func WithCardService(c *CardService) CheckoutOption {
	return func(s *CheckoutService) { s.cards = c }
}

// WithQuantityFlush registers a hook that sends unsent cart edits before an
// order is created from the cart.
func WithQuantityFlush(fn func()) CheckoutOption {
	return func(s *CheckoutService) { s.flush = fn }
}

// WithUserID sets the source of the user id stamped on published events.
func WithUserID(fn func() string) CheckoutOption {
	return func(s *CheckoutService) { s.userID = fn }
}

func NewCheckoutService(api API, store *cart.Store, log logrus.FieldLogger, opts ...CheckoutOption) *CheckoutService {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	s := &CheckoutService{
		api:    api,
		store:  store,
		events: publisher.NopPublisher{},
		flush:  func() {},
		userID: func() string { return "" },
		now:    time.Now,
		log:    log.WithField("component", "checkout"),
		state:  domain.CheckoutStateNoOrder,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *CheckoutService) State() domain.CheckoutState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Order returns the pending order of the session, if any.
func (s *CheckoutService) Order() (domain.PendingOrder, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.order == nil {
		return domain.PendingOrder{}, false
	}
	return *s.order, true
}

// Intent returns the payment intent of the current attempt, if any.
func (s *CheckoutService) Intent() (domain.PaymentIntent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.intent == nil {
		return domain.PaymentIntent{}, false
	}
	return *s.intent, true
}

// LastError is the error that moved the session into FAILED.
func (s *CheckoutService) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *CheckoutService) transitionLocked(to domain.CheckoutState) error {
	if !domain.CanTransitionTo(s.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.state, to)
	}
	s.log.WithFields(logrus.Fields{"from": s.state, "to": to}).Debug("checkout transition")
	s.state = to
	return nil
}

func (s *CheckoutService) transition(to domain.CheckoutState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(to)
}

// fail records cause and moves the session into FAILED. A session that is
// already FAILED keeps its state and takes the newer cause.
func (s *CheckoutService) fail(ctx context.Context, cause error) {
	s.mu.Lock()
	if s.state != domain.CheckoutStateFailed {
		if err := s.transitionLocked(domain.CheckoutStateFailed); err != nil {
			s.log.WithError(err).Error("cannot mark checkout failed")
		}
	}
	s.lastErr = cause
	if s.intent != nil {
		s.intent.Status = domain.IntentStatusFailed
	}
	event := s.eventLocked(publisher.EventPaymentFailed)
	s.mu.Unlock()

	event.Reason = cause.Error()
	s.publish(ctx, event)
}

func (s *CheckoutService) eventLocked(t publisher.EventType) publisher.CheckoutEvent {
	event := publisher.CheckoutEvent{
		Type:       t,
		UserID:     s.userID(),
		OccurredAt: s.now().UTC(),
	}
	if s.order != nil {
		event.OrderID = s.order.OrderID
		event.Total = s.order.Total
	}
	if s.intent != nil {
		event.PaymentIntentID = s.intent.PaymentIntentID
	}
	return event
}

func (s *CheckoutService) publish(ctx context.Context, event publisher.CheckoutEvent) {
	if err := s.events.Publish(context.WithoutCancel(ctx), event); err != nil {
		s.log.WithError(err).WithField("event_type", event.Type).Warn("publish checkout event failed")
	}
}
