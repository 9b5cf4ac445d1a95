package domain

type IntentStatus string

const (
	IntentStatusCreated   IntentStatus = "CREATED"
	IntentStatusConfirmed IntentStatus = "CONFIRMED"
	IntentStatusFailed    IntentStatus = "FAILED"
)

// PaymentIntent is one attempt to charge an order.
type PaymentIntent struct {
	PaymentIntentID string       `json:"payment_intent_id"`
	OrderID         int64        `json:"order_id"`
	Status          IntentStatus `json:"status"`
}

// CardDetails are entered at payment time. Expiry is "MM/YYYY".
type CardDetails struct {
	Number       string
	Holder       string
	Expiry       string
	CVV          string
	SaveForReuse bool
}

// Last4 returns the trailing four digits of the card number, if present.
func (c CardDetails) Last4() string {
	digits := make([]rune, 0, len(c.Number))
	for _, r := range c.Number {
		if r >= '0' && r <= '9' {
			digits = append(digits, r)
		}
	}
	if len(digits) < 4 {
		return string(digits)
	}
	return string(digits[len(digits)-4:])
}

// SavedCard is the display entry of a card stored server-side.
type SavedCard struct {
	ID     string `json:"id"`
	Holder string `json:"holder"`
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}
