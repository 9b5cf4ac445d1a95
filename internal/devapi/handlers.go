package devapi

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	view := s.store.Cart(userIDFromContext(r.Context()))
	respondJSON(w, http.StatusOK, toCartResponse(view))
}

func (s *Server) addItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}
	if req.Quantity <= 0 || req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be between 1 and 99")
		return
	}

	item, err := s.store.AddItem(userIDFromContext(r.Context()), req.ProductID, req.Quantity, req.Size, req.ColorHex)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"item": toCartItem(item)})
}

func (s *Server) updateItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	item, err := s.store.UpdateItem(userIDFromContext(r.Context()), id, req.Quantity)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"item": toCartItem(item)})
}

func (s *Server) removeItem(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.store.RemoveItem(userIDFromContext(r.Context()), id); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) revertCheckout(w http.ResponseWriter, r *http.Request) {
	view := s.store.RevertCheckout(userIDFromContext(r.Context()))
	respondJSON(w, http.StatusOK, toCartResponse(view))
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	order, err := s.store.CreateOrder(userIDFromContext(r.Context()), r.Header.Get("Idempotency-Key"))
	if err != nil {
		handleStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"order": toOrderDTO(order)})
}

func (s *Server) updateShipping(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req ShippingSnapshotRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req.Shipping); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	order, err := s.store.UpdateShipping(userIDFromContext(r.Context()), id, req.Shipping)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"order": toOrderDTO(order)})
}

func (s *Server) snapshotShipping(w http.ResponseWriter, r *http.Request) {
	var req ShippingSnapshotRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "order_id and shipping are required")
		return
	}
	order, err := s.store.SnapshotShipping(userIDFromContext(r.Context()), req.OrderID, req.Shipping)
	if err != nil {
		handleStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"order": toOrderDTO(order)})
}

func (s *Server) myOrders(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	orders := s.store.Orders(userIDFromContext(r.Context()), limit, page)

	out := make([]orderDTO, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderDTO(o))
	}
	respondJSON(w, http.StatusOK, map[string]any{"orders": out, "page": page, "limit": limit})
}

func (s *Server) createIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "order_id is required")
		return
	}
	intent, err := s.store.CreateIntent(userIDFromContext(r.Context()), req.OrderID, r.Header.Get("Idempotency-Key"))
	if err != nil {
		handleStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"payment_intent_id": intent.ID})
}

func (s *Server) confirmIntent(w http.ResponseWriter, r *http.Request) {
	var req IntentRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID <= 0 || req.PaymentIntentID == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "order_id and payment_intent_id are required")
		return
	}
	if _, err := s.store.ConfirmIntent(userIDFromContext(r.Context()), req.OrderID, req.PaymentIntentID); err != nil {
		handleStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"status": "succeeded", "order_id": req.OrderID})
}

func (s *Server) listCards(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"cards": s.store.Cards(userIDFromContext(r.Context()))})
}

func (s *Server) saveCard(w http.ResponseWriter, r *http.Request) {
	var req SaveCardRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Last4 == "" {
		respondError(w, http.StatusBadRequest, "invalid_request", "last4 is required")
		return
	}
	card := s.store.SaveCard(userIDFromContext(r.Context()), req.Holder, req.Last4, req.Expiry)
	respondJSON(w, http.StatusCreated, map[string]any{"card": card})
}

func (s *Server) deleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteCard(userIDFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		handleStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_id", "id must be a positive integer")
		return 0, false
	}
	return id, true
}

func handleStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, ErrItemNotFound):
		respondError(w, http.StatusNotFound, "item_not_found", err.Error())
	case errors.Is(err, ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, ErrIntentNotFound):
		respondError(w, http.StatusNotFound, "intent_not_found", err.Error())
	case errors.Is(err, ErrCardNotFound):
		respondError(w, http.StatusNotFound, "card_not_found", err.Error())
	case errors.Is(err, ErrCartLocked):
		respondError(w, http.StatusConflict, "cart_locked", err.Error())
	case errors.Is(err, ErrInvalidStatus):
		respondError(w, http.StatusConflict, "invalid_status", err.Error())
	case errors.Is(err, ErrCartEmpty):
		respondError(w, http.StatusBadRequest, "cart_empty", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		respondError(w, http.StatusBadRequest, "invalid_quantity", err.Error())
	case errors.Is(err, ErrPaymentDeclined):
		respondError(w, http.StatusPaymentRequired, "payment_declined", err.Error())
	case errors.Is(err, ErrInsufficientStock):
		respondError(w, http.StatusUnprocessableEntity, "insufficient_stock", err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}
