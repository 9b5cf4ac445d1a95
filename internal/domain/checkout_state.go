package domain

type CheckoutState string

const (
	CheckoutStateNoOrder       CheckoutState = "NO_ORDER"
	CheckoutStateOrderCreated  CheckoutState = "ORDER_CREATED"
	CheckoutStateIntentCreated CheckoutState = "INTENT_CREATED"
	CheckoutStateConfirming    CheckoutState = "CONFIRMING"
	CheckoutStatePaid          CheckoutState = "PAID"
	CheckoutStateFailed        CheckoutState = "FAILED"
	CheckoutStateCancelled     CheckoutState = "CANCELLED"
)

// FAILED ends a payment attempt but keeps the order, so a new attempt may
// start from it (each attempt creates its own intent).
var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateNoOrder:       {CheckoutStateOrderCreated},
	CheckoutStateOrderCreated:  {CheckoutStateIntentCreated, CheckoutStateFailed, CheckoutStateCancelled},
	CheckoutStateIntentCreated: {CheckoutStateConfirming, CheckoutStateFailed},
	CheckoutStateConfirming:    {CheckoutStatePaid, CheckoutStateFailed},
	CheckoutStateFailed:        {CheckoutStateIntentCreated, CheckoutStateCancelled},
	CheckoutStatePaid:          {},
	CheckoutStateCancelled:     {},
}

// CanTransitionTo reports whether the orchestrator may move from -> to.
func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range checkoutTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal is true for states that end a checkout session.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStatePaid || s == CheckoutStateCancelled
}

// HasOrder is true while a pending order is attached to the session.
func (s CheckoutState) HasOrder() bool {
	switch s {
	case CheckoutStateOrderCreated, CheckoutStateIntentCreated, CheckoutStateConfirming, CheckoutStateFailed:
		return true
	}
	return false
}

// String representation (for logging)
func (s CheckoutState) String() string {
	return string(s)
}
