// Package cache mirrors saved-card display entries for offline preview. The
// server stays authoritative; entries are replaced on every successful card call.
package cache

import (
	"context"
	"errors"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

type CardCache interface {
	Get(ctx context.Context, userID string) ([]domain.SavedCard, error)
	Set(ctx context.Context, userID string, cards []domain.SavedCard) error
	Delete(ctx context.Context, userID string) error
}

var ErrCacheMiss = errors.New("cache miss")
