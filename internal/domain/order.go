package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Shipping struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	City        string `json:"city"`
	Province    string `json:"province"`
	PostalCode  string `json:"postal_code"`
	PhoneNumber string `json:"phone_number"`
}

// PendingOrder is an order created from the cart and not yet paid.
type PendingOrder struct {
	OrderID   int64           `json:"order_id"`
	Items     []CartLineItem  `json:"items"`
	Shipping  Shipping        `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
}
