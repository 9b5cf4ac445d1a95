package devapi

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type cartItemDTO struct {
	CartItemID  int64           `json:"cart_item_id"`
	ProductID   int64           `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    int             `json:"quantity"`
	Stock       int             `json:"stock"`
	Size        string          `json:"size,omitempty"`
	ColorHex    string          `json:"color_hex,omitempty"`
	ImageURL    string          `json:"image_url,omitempty"`
}

type cartDTO struct {
	ID     int64  `json:"id"`
	Status string `json:"status"`
}

type cartMetaDTO struct {
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type cartResponseDTO struct {
	Cart  cartDTO       `json:"cart"`
	Items []cartItemDTO `json:"items"`
	Meta  cartMetaDTO   `json:"meta"`
}

type AddItemRequestDTO struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	ColorHex  string `json:"color_hex"`
}

type UpdateQuantityRequestDTO struct {
	Quantity int `json:"quantity"`
}

type orderItemDTO struct {
	CartItemID int64           `json:"cart_item_id"`
	ProductID  int64           `json:"product_id"`
	Name       string          `json:"name"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Size       string          `json:"size,omitempty"`
	ColorHex   string          `json:"color_hex,omitempty"`
}

type orderDTO struct {
	ID        int64           `json:"id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Items     []orderItemDTO  `json:"items"`
	Shipping  domain.Shipping `json:"shipping"`
	CreatedAt time.Time       `json:"created_at"`
}

type ShippingSnapshotRequestDTO struct {
	OrderID  int64           `json:"order_id"`
	Shipping domain.Shipping `json:"shipping"`
}

type IntentRequestDTO struct {
	OrderID         int64  `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type SaveCardRequestDTO struct {
	Holder string `json:"holder"`
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}

type LoginRequestDTO struct {
	UserID string `json:"user_id"`
}

type tokenResponseDTO struct {
	AccessToken string `json:"accessToken"`
	UserID      string `json:"user_id,omitempty"`
}

func toCartResponse(v CartView) cartResponseDTO {
	items := make([]cartItemDTO, 0, len(v.Items))
	for _, it := range v.Items {
		items = append(items, toCartItem(it))
	}
	return cartResponseDTO{
		Cart:  cartDTO{ID: v.ID, Status: v.Status.String()},
		Items: items,
		Meta:  cartMetaDTO{TotalItems: v.Meta.TotalItems, Subtotal: v.Meta.Subtotal},
	}
}

func toCartItem(it domain.CartLineItem) cartItemDTO {
	return cartItemDTO{
		CartItemID:  it.CartItemID,
		ProductID:   it.ProductID,
		Name:        it.Name,
		Description: it.Description,
		Price:       it.UnitPrice,
		Quantity:    it.Quantity,
		Stock:       it.StockAvailable,
		Size:        it.Size,
		ColorHex:    it.ColorHex,
		ImageURL:    it.ImageURL,
	}
}

func toOrderDTO(o Order) orderDTO {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, l := range o.Items {
		items = append(items, orderItemDTO{
			CartItemID: l.CartItemID,
			ProductID:  l.ProductID,
			Name:       l.Name,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
			Size:       l.Size,
			ColorHex:   l.ColorHex,
		})
	}
	return orderDTO{
		ID:        o.ID,
		Status:    o.Status,
		Total:     o.Total,
		Items:     items,
		Shipping:  o.Shipping,
		CreatedAt: o.CreatedAt,
	}
}
