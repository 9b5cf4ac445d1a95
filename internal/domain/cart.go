package domain

import (
	"regexp"

	"github.com/shopspring/decimal"
)

type CartStatus string

const (
	CartStatusOpen               CartStatus = "OPEN"
	CartStatusCheckoutInProgress CartStatus = "CHECKOUT_IN_PROGRESS"
)

// String representation (for logging)
func (s CartStatus) String() string {
	return string(s)
}

// IsValid reports whether s is one of the known cart statuses.
func (s CartStatus) IsValid() bool {
	return s == CartStatusOpen || s == CartStatusCheckoutInProgress
}

var colorHexPattern = regexp.MustCompile(`^#?([0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// ValidColorHex reports whether c is a 6 or 8 digit hex color, with or without a leading '#'.
func ValidColorHex(c string) bool {
	return colorHexPattern.MatchString(c)
}

// CartLineItem is one server-side cart row.
type CartLineItem struct {
	CartItemID     int64           `json:"cart_item_id"`
	ProductID      int64           `json:"product_id"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	UnitPrice      decimal.Decimal `json:"unit_price"`
	Quantity       int             `json:"quantity"`
	StockAvailable int             `json:"stock_available"`
	Size           string          `json:"size,omitempty"`
	ColorHex       string          `json:"color_hex,omitempty"`
	ImageURL       string          `json:"image_url,omitempty"`
}

// LineTotal is UnitPrice * Quantity.
func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// ClampQuantity bounds qty to [1, stock] when stock is known (> 0).
// With unknown stock only the lower bound applies.
func ClampQuantity(qty, stock int) int {
	if qty < 1 {
		qty = 1
	}
	if stock > 0 && qty > stock {
		qty = stock
	}
	return qty
}

// CartMeta holds the aggregate figures as last reported by the server.
type CartMeta struct {
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

// CartAggregate is a read-only snapshot of the cart.
type CartAggregate struct {
	Items  []CartLineItem
	Meta   CartMeta
	Status CartStatus
}

// ComputeMeta derives item count and subtotal from the given rows.
func ComputeMeta(items []CartLineItem) CartMeta {
	meta := CartMeta{Subtotal: decimal.Zero}
	for _, item := range items {
		meta.TotalItems += item.Quantity
		meta.Subtotal = meta.Subtotal.Add(item.LineTotal())
	}
	return meta
}
