package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/example/ec-storefront/internal/domain/product"
)

// ProductsResponse is the catalog view served to the UI
type ProductsResponse struct {
	Items      []product.Product `json:"items"`
	Criteria   product.Criteria  `json:"criteria"`
	Status     product.Status    `json:"status"`
	Error      string            `json:"error,omitempty"`
	Page       int               `json:"page"`
	TotalPages int               `json:"totalPages"`
	Total      int               `json:"total"`
	Cached     bool              `json:"cached"`
}

type refreshRequest struct {
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
	Search    string `json:"search"`
	Category  string `json:"category"`
	Sort      string `json:"sort"`
	SortOrder string `json:"sortOrder"`
}

func (h *Handlers) productsResponse() ProductsResponse {
	state := h.catalog.State()
	return ProductsResponse{
		Items:      h.catalog.Sorted(),
		Criteria:   state.Criteria,
		Status:     state.Status,
		Error:      state.Error,
		Page:       state.Page,
		TotalPages: state.TotalPages,
		Total:      state.Total,
		Cached:     state.Cached,
	}
}

// GetProducts returns the filtered and sorted view. search, category, sort
// and order query parameters update the criteria first.
func (h *Handlers) GetProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	criteria := h.catalog.Criteria()
	changed := false
	if q.Has("search") {
		criteria.SearchTerm = q.Get("search")
		changed = true
	}
	if q.Has("category") {
		criteria.Category = q.Get("category")
		changed = true
	}
	if q.Has("sort") {
		criteria.SortBy = product.SortKey(q.Get("sort"))
		changed = true
	}
	if q.Has("order") {
		criteria.SortOrder = product.SortOrder(q.Get("order"))
		changed = true
	}
	if changed {
		if err := h.catalog.ApplyCriteria(criteria); err != nil {
			respondDomainError(w, err)
			return
		}
	}

	respondJSON(w, http.StatusOK, h.productsResponse())
}

// RefreshProducts fetches a listing from the backend
func (h *Handlers) RefreshProducts(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	query := product.Query{Page: req.Page, Limit: req.Limit, Search: req.Search, Category: req.Category}
	if req.Sort != "" {
		key, err := product.ParseSortKey(req.Sort)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		query.Sort = key
	}
	if req.SortOrder != "" {
		order, err := product.ParseSortOrder(req.SortOrder)
		if err != nil {
			respondDomainError(w, err)
			return
		}
		query.SortOrder = order
	}

	if _, err := h.catalog.Fetch(r.Context(), query); err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.productsResponse())
}

func (h *Handlers) ListCategories(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]string{"categories": h.catalog.Categories()})
}

func (h *Handlers) PopularProducts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string][]product.Product{"items": h.catalog.Popular()})
}

func (h *Handlers) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, ok := h.lookup(r.Context(), product.ID(r.PathValue("id")))
	if !ok {
		respondJSONError(w, "Product not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handlers) RelatedProducts(w http.ResponseWriter, r *http.Request) {
	id := product.ID(r.PathValue("id"))
	respondJSON(w, http.StatusOK, map[string][]product.Product{"items": h.catalog.Related(id)})
}
