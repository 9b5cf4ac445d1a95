package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/gateway"
)

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrCheckoutConflict  = errors.New("a checkout is already in progress for this cart")
	ErrIllegalTransition = errors.New("illegal transition of checkout state")
	ErrNoPendingOrder    = errors.New("no pending order to resume")
	ErrNoActiveOrder     = errors.New("no active order, begin checkout first")
	ErrItemNotFound      = errors.New("cart item not found")
)

// ValidationError carries one message per offending field. It is produced
// before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, name+": "+e.Fields[name])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Field returns the message for name, or "".
func (e *ValidationError) Field(name string) string {
	return e.Fields[name]
}

func (e *ValidationError) add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	if _, exists := e.Fields[field]; !exists {
		e.Fields[field] = msg
	}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindCancelled
	KindValidation
	KindConflict
	KindSessionExpired
	KindNetwork
	KindFormat
	KindHTTP
)

// Classify maps err onto the error taxonomy. Conflicts and session expiry
// drive dedicated UI flows; everything else becomes a banner.
func Classify(err error) ErrorKind {
	var ve *ValidationError
	var he *gateway.HTTPStatusError
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &ve):
		return KindValidation
	case errors.Is(err, ErrCheckoutConflict):
		return KindConflict
	case gateway.IsSessionExpired(err):
		return KindSessionExpired
	case gateway.IsNetwork(err):
		return KindNetwork
	case errors.Is(err, gateway.ErrUnexpectedResponseFormat):
		return KindFormat
	case errors.As(err, &he):
		return KindHTTP
	}
	return KindUnknown
}

// UserMessage renders err for display, prefixed with the attempted action
// ("Cart", "Checkout", ...). Cancelled operations render as "".
func UserMessage(action string, err error) string {
	var he *gateway.HTTPStatusError
	switch Classify(err) {
	case KindCancelled:
		return ""
	case KindSessionExpired:
		return "Your session has expired. Please sign in again."
	case KindConflict:
		return "A checkout is already in progress. Resume it or cancel it to change your cart."
	case KindValidation:
		return "Please correct the highlighted fields."
	case KindFormat:
		return fmt.Sprintf("%s: unexpected response from server", action)
	case KindHTTP:
		errors.As(err, &he)
		return fmt.Sprintf("%s: %s", action, he.Message)
	}
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%s: %v", action, err)
}
