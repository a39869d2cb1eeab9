package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/product"
)

// ProductLookup fetches a single product from the backend
type ProductLookup interface {
	GetProduct(ctx context.Context, id product.ID) (*product.Product, error)
}

type Handlers struct {
	catalog  *product.Service
	carts    *cart.Service
	products ProductLookup
}

func NewHandlers(catalog *product.Service, carts *cart.Service, products ProductLookup) *Handlers {
	return &Handlers{
		catalog:  catalog,
		carts:    carts,
		products: products,
	}
}

// Cart Handlers

type addItemRequest struct {
	ProductID product.ID `json:"productId"`
	Quantity  *int       `json:"quantity"`

	// Snapshot used when the product is not in the loaded catalog
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail"`
}

func (h *Handlers) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.carts.Snapshot())
}

func (h *Handlers) RefreshCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.carts.Fetch(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	quantity := 1
	if req.Quantity != nil {
		quantity = *req.Quantity
	}

	line := cart.Line{ProductID: req.ProductID, Title: req.Title, Price: req.Price, Thumbnail: req.Thumbnail}
	if p, ok := h.lookup(r.Context(), req.ProductID); ok {
		line = cart.LineFromProduct(p, 0)
	}

	res, err := h.carts.AddItem(r.Context(), line, quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// lookup resolves a product snapshot from the loaded catalog, then the backend
func (h *Handlers) lookup(ctx context.Context, id product.ID) (product.Product, bool) {
	if id == "" {
		return product.Product{}, false
	}
	if p, ok := h.catalog.Get(id); ok {
		return p, true
	}
	if h.products == nil {
		return product.Product{}, false
	}
	p, err := h.products.GetProduct(ctx, id)
	if err != nil {
		log.Printf("[API] Product %s lookup failed, using request snapshot: %v", id, err)
		return product.Product{}, false
	}
	return *p, true
}

func (h *Handlers) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	productID := product.ID(r.PathValue("id"))

	var req struct {
		Quantity *int `json:"quantity"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		respondJSONError(w, "quantity is required", http.StatusBadRequest)
		return
	}

	res, err := h.carts.UpdateQuantity(r.Context(), productID, *req.Quantity)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.carts.RemoveItem(r.Context(), product.ID(r.PathValue("id")))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (h *Handlers) ClearCart(w http.ResponseWriter, r *http.Request) {
	res, err := h.carts.Clear(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// AcknowledgeCart returns the cart store to idle once the UI showed the outcome
func (h *Handlers) AcknowledgeCart(w http.ResponseWriter, r *http.Request) {
	h.carts.Acknowledge()
	respondJSON(w, http.StatusOK, h.carts.Snapshot())
}

// Helper functions

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, status, map[string]string{"error": message})
}

// respondDomainError maps classified errors to HTTP statuses. Unexpected
// errors get a generic message.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, product.ErrStaleResponse):
		respondJSONError(w, "superseded by a newer request", http.StatusConflict)
		return
	case errors.Is(err, product.ErrInvalidSortKey), errors.Is(err, product.ErrInvalidOrder):
		respondJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind := apperrors.KindOf(err)
	status := http.StatusInternalServerError
	message := "Something went wrong"
	switch kind {
	case apperrors.KindValidation:
		status = http.StatusBadRequest
		message = apperrors.MessageOf(err)
	case apperrors.KindAuth:
		status = http.StatusUnauthorized
		message = apperrors.MessageOf(err)
	case apperrors.KindNetwork:
		status = http.StatusServiceUnavailable
		message = "Network error. Please check your connection."
	default:
		log.Printf("[API] Unexpected error: %v", err)
	}
	respondJSON(w, status, map[string]string{"error": message, "kind": string(kind)})
}
