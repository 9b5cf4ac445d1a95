package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/cache"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
)

const anonymousOwner = "anonymous"

// CardService manages saved cards. The server is the source of truth; the
// cache holds a per-user mirror for display.
type CardService struct {
	api   API
	cache cache.CardCache
	owner func() string
	log   logrus.FieldLogger
}

func NewCardService(api API, c cache.CardCache, owner func() string, log logrus.FieldLogger) *CardService {
	if log == nil {
		l := logrus.New()
		l.Out = io.Discard
		log = l
	}
	if owner == nil {
		owner = func() string { return "" }
	}
	return &CardService{
		api:   api,
		cache: c,
		owner: owner,
		log:   log.WithField("component", "cards"),
	}
}

// SaveCard stores the display details of card on the server. The full
// number and CVV are never sent.
func (s *CardService) SaveCard(ctx context.Context, card domain.CardDetails) (domain.SavedCard, error) {
	req := gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/cards",
		Body: saveCardRequest{
			Holder: card.Holder,
			Last4:  card.Last4(),
			Expiry: card.Expiry,
		},
	}
	var resp cardResponse
	if err := s.api.Do(ctx, req, &resp); err != nil {
		return domain.SavedCard{}, fmt.Errorf("save card: %w", err)
	}

	cards := s.cached(ctx)
	cards = append(cards, resp.Card)
	s.mirror(ctx, cards)
	return resp.Card, nil
}

func (s *CardService) DeleteCard(ctx context.Context, id string) error {
	req := gateway.Request{
		Method: http.MethodDelete,
		Path:   "/api/cards/" + url.PathEscape(id),
	}
	if err := s.api.Do(ctx, req, nil); err != nil && gateway.StatusCode(err) != http.StatusNotFound {
		return fmt.Errorf("delete card: %w", err)
	}

	cards := s.cached(ctx)
	kept := make([]domain.SavedCard, 0, len(cards))
	for _, c := range cards {
		if c.ID != id {
			kept = append(kept, c)
		}
	}
	s.mirror(ctx, kept)
	return nil
}

// Cards loads the saved cards from the server and refreshes the mirror.
func (s *CardService) Cards(ctx context.Context) ([]domain.SavedCard, error) {
	var resp cardsResponse
	if err := s.api.Do(ctx, gateway.Request{Method: http.MethodGet, Path: "/api/cards"}, &resp); err != nil {
		return nil, fmt.Errorf("list cards: %w", err)
	}
	if resp.Cards == nil {
		resp.Cards = []domain.SavedCard{}
	}
	s.mirror(ctx, resp.Cards)
	return resp.Cards, nil
}

// CachedCards returns the mirrored list. A cache miss is an empty list.
func (s *CardService) CachedCards(ctx context.Context) ([]domain.SavedCard, error) {
	cards, err := s.cache.Get(ctx, s.ownerKey())
	if errors.Is(err, cache.ErrCacheMiss) {
		return []domain.SavedCard{}, nil
	}
	if err != nil {
		return nil, err
	}
	return cards, nil
}

func (s *CardService) cached(ctx context.Context) []domain.SavedCard {
	cards, err := s.CachedCards(ctx)
	if err != nil {
		s.log.WithError(err).Warn("card cache read failed")
		return []domain.SavedCard{}
	}
	return cards
}

func (s *CardService) mirror(ctx context.Context, cards []domain.SavedCard) {
	if err := s.cache.Set(ctx, s.ownerKey(), cards); err != nil {
		s.log.WithError(err).Warn("card cache write failed")
	}
}

func (s *CardService) ownerKey() string {
	if id := s.owner(); id != "" {
		return id
	}
	return anonymousOwner
}
