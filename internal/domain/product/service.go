package product

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/infrastructure/store"
)

var ErrStaleResponse = errors.New("product listing superseded by a newer request")

type Status string

const (
	StatusIdle      Status = "idle"
	StatusLoading   Status = "loading"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Source fetches product listings from the backend
type Source interface {
	ListProducts(ctx context.Context, q Query) (*Listing, error)
}

// State is a consistent copy of the catalog store
type State struct {
	Items      []Product `json:"items"`
	Status     Status    `json:"status"`
	Error      string    `json:"error,omitempty"`
	Criteria   Criteria  `json:"criteria"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	Total      int       `json:"total"`
	Cached     bool      `json:"cached"`
}

type filterKey struct {
	generation uint64
	searchTerm string
	category   string
}

type relatedKey struct {
	generation uint64
	id         ID
}

// Service is the product catalog store: the fetched list, the criteria and
// the memoized views derived from both.
type Service struct {
	source   Source
	cache    store.Cache
	cacheTTL time.Duration

	mu         sync.RWMutex
	items      []Product
	generation uint64
	seq        uint64
	status     Status
	err        error
	criteria   Criteria
	page       int
	totalPages int
	total      int
	cached     bool

	categoriesView memo[uint64, []string]
	filteredView   memo[filterKey, []Product]
	sortedView     memo[viewKey, []Product]
	popularView    memo[uint64, []Product]
	relatedView    memo[relatedKey, []Product]
}

func NewService(source Source) *Service {
	return &Service{
		source:   source,
		status:   StatusIdle,
		criteria: DefaultCriteria(),
	}
}

// WithCache serves listings from cache when the backend is unreachable
func (s *Service) WithCache(cache store.Cache, ttl time.Duration) *Service {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// Fetch loads a listing and replaces the item list. A response that arrives
// after a newer Fetch has started is dropped with ErrStaleResponse.
func (s *Service) Fetch(ctx context.Context, q Query) (*Listing, error) {
	s.mu.Lock()
	s.seq++
	seq := s.seq
	s.status = StatusLoading
	s.err = nil
	s.mu.Unlock()

	listing, err := s.source.ListProducts(ctx, q)
	if err != nil && apperrors.KindOf(err) == apperrors.KindNetwork {
		if cached, ok := s.fromCache(ctx, q); ok {
			log.Printf("[Catalog] Backend unreachable, serving cached listing: %v", err)
			listing, err = cached, nil
		}
	}

	s.mu.Lock()
	if seq != s.seq {
		s.mu.Unlock()
		return nil, ErrStaleResponse
	}
	if err != nil {
		s.status = StatusFailed
		s.err = err
		s.mu.Unlock()
		return nil, err
	}
	s.items = listing.Items
	s.generation++
	s.page = listing.Page
	s.totalPages = listing.TotalPages
	s.total = listing.Total
	s.cached = listing.Cached
	s.status = StatusSucceeded
	s.mu.Unlock()

	if !listing.Cached {
		s.toCache(ctx, q, listing)
	}
	return listing, nil
}

func cacheKey(q Query) string {
	return "products?" + q.Values().Encode()
}

func (s *Service) fromCache(ctx context.Context, q Query) (*Listing, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, ok, err := s.cache.Get(ctx, cacheKey(q))
	if err != nil {
		log.Printf("[Catalog] Cache read failed: %v", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	listing, err := DecodeListing(data)
	if err != nil {
		log.Printf("[Catalog] Discarding unreadable cache entry: %v", err)
		return nil, false
	}
	listing.Cached = true
	return listing, true
}

func (s *Service) toCache(ctx context.Context, q Query, listing *Listing) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(listing)
	if err != nil {
		log.Printf("[Catalog] Failed to encode listing for cache: %v", err)
		return
	}
	if err := s.cache.Set(ctx, cacheKey(q), data, s.cacheTTL); err != nil {
		log.Printf("[Catalog] Cache write failed: %v", err)
	}
}

// State returns a copy of the store state
func (s *Service) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := State{
		Items:      s.items,
		Status:     s.status,
		Criteria:   s.criteria,
		Page:       s.page,
		TotalPages: s.totalPages,
		Total:      s.total,
		Cached:     s.cached,
	}
	if s.err != nil {
		st.Error = apperrors.MessageOf(s.err)
	}
	return st
}

func (s *Service) Criteria() Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.criteria
}

func (s *Service) SetSearchTerm(term string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.SearchTerm = term
}

func (s *Service) SetCategory(category string) {
	if category == "" {
		category = AllCategories
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.Category = category
}

func (s *Service) SetSort(key SortKey) error {
	if _, err := ParseSortKey(string(key)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.SortBy = key
	return nil
}

func (s *Service) SetSortOrder(order SortOrder) error {
	if _, err := ParseSortOrder(string(order)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria.SortOrder = order
	return nil
}

// ToggleSort flips the order when key is already active, otherwise switches
// to key ascending.
func (s *Service) ToggleSort(key SortKey) error {
	if _, err := ParseSortKey(string(key)); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.criteria.SortBy == key {
		if s.criteria.SortOrder == Asc {
			s.criteria.SortOrder = Desc
		} else {
			s.criteria.SortOrder = Asc
		}
		return nil
	}
	s.criteria.SortBy = key
	s.criteria.SortOrder = Asc
	return nil
}

// ApplyCriteria replaces the whole criteria set after validating it
func (s *Service) ApplyCriteria(c Criteria) error {
	if c.Category == "" {
		c.Category = AllCategories
	}
	if c.SortBy == "" {
		c.SortBy = SortByTitle
	}
	if c.SortOrder == "" {
		c.SortOrder = Asc
	}
	if _, err := ParseSortKey(string(c.SortBy)); err != nil {
		return errors.Wrap(err, "apply criteria")
	}
	if _, err := ParseSortOrder(string(c.SortOrder)); err != nil {
		return errors.Wrap(err, "apply criteria")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.criteria = c
	return nil
}

func (s *Service) snapshot() ([]Product, uint64, Criteria) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.items, s.generation, s.criteria
}

// The view accessors return memoized slices shared between callers; callers
// must treat them as read-only.

func (s *Service) Categories() []string {
	items, gen, _ := s.snapshot()
	return s.categoriesView.get(gen, func() []string { return Categories(items) })
}

func (s *Service) Filtered() []Product {
	items, gen, c := s.snapshot()
	return s.filtered(items, gen, c)
}

func (s *Service) filtered(items []Product, gen uint64, c Criteria) []Product {
	key := filterKey{generation: gen, searchTerm: c.SearchTerm, category: c.Category}
	return s.filteredView.get(key, func() []Product {
		return Filter(items, c.SearchTerm, c.Category)
	})
}

// Sorted is the filtered view ordered by the current sort criteria
func (s *Service) Sorted() []Product {
	items, gen, c := s.snapshot()
	return s.sortedView.get(viewKey{generation: gen, criteria: c}, func() []Product {
		return SortProducts(s.filtered(items, gen, c), c.SortBy, c.SortOrder)
	})
}

func (s *Service) Popular() []Product {
	items, gen, _ := s.snapshot()
	return s.popularView.get(gen, func() []Product { return Popular(items) })
}

func (s *Service) Related(productID ID) []Product {
	items, gen, _ := s.snapshot()
	return s.relatedView.get(relatedKey{generation: gen, id: productID}, func() []Product {
		return Related(items, productID)
	})
}

func (s *Service) Get(productID ID) (Product, bool) {
	items, _, _ := s.snapshot()
	return Find(items, productID)
}
