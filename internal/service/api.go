package service

import (
	"context"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
)

// API is the part of the request gateway the services use.
type API interface {
	Send(ctx context.Context, req gateway.Request) (*gateway.Response, error)
	Do(ctx context.Context, req gateway.Request, out any) error
}
