package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
)

func TestClassify(t *testing.T) {
	netErr := &gateway.NetworkError{Method: "GET", URL: "http://x/api/cart", Err: errors.New("connection refused")}
	tests := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindUnknown},
		{&gateway.NetworkError{Err: context.Canceled}, KindCancelled},
		{&ValidationError{Fields: map[string]string{"cvv": "bad"}}, KindValidation},
		{fmt.Errorf("add: %w", ErrCheckoutConflict), KindConflict},
		{&gateway.SessionExpiredError{Status: 401}, KindSessionExpired},
		{netErr, KindNetwork},
		{fmt.Errorf("decode: %w", gateway.ErrUnexpectedResponseFormat), KindFormat},
		{&gateway.HTTPStatusError{Status: 409, Message: "HTTP 409"}, KindHTTP},
		{errors.New("other"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.err), "%v", tt.err)
	}
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "", UserMessage("Cart", nil))
	assert.Equal(t, "", UserMessage("Cart", context.Canceled))
	assert.Equal(t, "Checkout: HTTP 409", UserMessage("Checkout", &gateway.HTTPStatusError{Status: 409, Message: "HTTP 409"}))
	assert.Equal(t, "Cart: unexpected response from server", UserMessage("Cart", gateway.ErrUnexpectedResponseFormat))
	assert.Contains(t, UserMessage("Cart", &gateway.NetworkError{Method: "GET", URL: "u", Err: errors.New("refused")}), "refused")
	assert.Contains(t, UserMessage("Cart", &gateway.SessionExpiredError{Status: 401}), "sign in again")
	assert.Contains(t, UserMessage("Cart", ErrCheckoutConflict), "Resume it or cancel it")
}
