package service

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/NdaedzoPhoshoko/Clementine-Store-sub001/internal/domain"
)

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

type cartMetaDTO struct {
	TotalItems int             `json:"total_items"`
	Subtotal   decimal.Decimal `json:"subtotal"`
}

type cartResponse struct {
	Cart struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	} `json:"cart"`
	Items []cartItemDTO `json:"items"`
	Meta  *cartMetaDTO  `json:"meta"`
}

type addItemRequest struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	ColorHex  string `json:"color_hex,omitempty"`
}

type updateQuantityRequest struct {
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

type createOrderRequest struct {
	Items []orderItemDTO  `json:"items"`
	Total decimal.Decimal `json:"total"`
}

type orderDTO struct {
	ID        int64           `json:"id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Items     []orderItemDTO  `json:"items"`
	Shipping  domain.Shipping `json:"shipping"`
	CreatedAt time.Time       `json:"created_at"`
}

type orderResponse struct {
	Order orderDTO `json:"order"`
}

type myOrdersResponse struct {
	Orders []orderDTO `json:"orders"`
	Page   int        `json:"page"`
	Limit  int        `json:"limit"`
}

type shippingSnapshotRequest struct {
	OrderID  int64           `json:"order_id"`
	Shipping domain.Shipping `json:"shipping"`
}

type createIntentRequest struct {
	OrderID int64 `json:"order_id"`
}

type createIntentResponse struct {
	PaymentIntentID string `json:"payment_intent_id"`
}

type confirmIntentRequest struct {
	OrderID         int64  `json:"order_id"`
	PaymentIntentID string `json:"payment_intent_id"`
}

type saveCardRequest struct {
	Holder string `json:"holder"`
	Last4  string `json:"last4"`
	Expiry string `json:"expiry"`
}

type cardResponse struct {
	Card domain.SavedCard `json:"card"`
}

type cardsResponse struct {
	Cards []domain.SavedCard `json:"cards"`
}

func (d cartItemDTO) toDomain() domain.CartLineItem {
	return domain.CartLineItem{
		CartItemID:     d.CartItemID,
		ProductID:      d.ProductID,
		Name:           d.Name,
		Description:    d.Description,
		UnitPrice:      d.Price,
		Quantity:       d.Quantity,
		StockAvailable: d.Stock,
		Size:           d.Size,
		ColorHex:       d.ColorHex,
		ImageURL:       d.ImageURL,
	}
}

func (r cartResponse) toDomain() ([]domain.CartLineItem, domain.CartMeta, domain.CartStatus) {
	items := make([]domain.CartLineItem, 0, len(r.Items))
	for _, it := range r.Items {
		items = append(items, it.toDomain())
	}
	meta := domain.ComputeMeta(items)
	if r.Meta != nil {
		meta = domain.CartMeta{TotalItems: r.Meta.TotalItems, Subtotal: r.Meta.Subtotal}
	}
	status := domain.CartStatus(r.Cart.Status)
	if !status.IsValid() {
		status = domain.CartStatusOpen
	}
	return items, meta, status
}

func toOrderItems(items []domain.CartLineItem) []orderItemDTO {
	out := make([]orderItemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, orderItemDTO{
			CartItemID: it.CartItemID,
			ProductID:  it.ProductID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Size:       it.Size,
			ColorHex:   it.ColorHex,
		})
	}
	return out
}

func (o orderDTO) toDomain() domain.PendingOrder {
	items := make([]domain.CartLineItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, domain.CartLineItem{
			CartItemID: it.CartItemID,
			ProductID:  it.ProductID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			Size:       it.Size,
			ColorHex:   it.ColorHex,
		})
	}
	return domain.PendingOrder{
		OrderID:   o.ID,
		Items:     items,
		Shipping:  o.Shipping,
		Total:     o.Total,
		Status:    o.Status,
		CreatedAt: o.CreatedAt,
	}
}
