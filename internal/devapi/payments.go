package devapi

import (
	"errors"
	"math/rand"
)

var ErrPaymentDeclined = errors.New("payment declined")

// ChargeDecider decides whether confirming an intent charges the card.
type ChargeDecider interface {
	Decide(orderID int64) (approved bool, reason string)
}

// ApproveAll accepts every charge.
type ApproveAll struct{}

func (ApproveAll) Decide(int64) (bool, string) { return true, "" }

var declineReasons = []string{"insufficient_funds", "card_declined", "expired_card", "do_not_honor"}

// RandomDecider declines about DeclinePercent of the charges.
type RandomDecider struct {
	DeclinePercent int
}

func (r RandomDecider) Decide(int64) (bool, string) {
	return calcDecision(rand.Intn(100), r.DeclinePercent)
}

func calcDecision(roll, declinePercent int) (bool, string) {
	if roll >= declinePercent {
		return true, ""
	}
	return false, declineReasons[roll%len(declineReasons)]
}

// SetChargeDecider replaces the decider used by ConfirmIntent.
func (s *MemoryStore) SetChargeDecider(d ChargeDecider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.decider = d
}
