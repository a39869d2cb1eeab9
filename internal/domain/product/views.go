package product

import (
	"sort"
	"strings"
)

const (
	PopularMinRating = 4.5
	PopularLimit     = 8
	RelatedLimit     = 4
)

// The view functions below never modify their input slice and always return
// a fresh slice.

// Categories returns "All" followed by the sorted distinct categories
func Categories(items []Product) []string {
	seen := make(map[string]struct{}, len(items))
	var names []string
	for _, p := range items {
		if p.Category == "" {
			continue
		}
		if _, ok := seen[p.Category]; ok {
			continue
		}
		seen[p.Category] = struct{}{}
		names = append(names, p.Category)
	}
	sort.Strings(names)
	return append([]string{AllCategories}, names...)
}

// Filter keeps products matching the search term (case-insensitive, title or
// description) and the category, preserving input order.
func Filter(items []Product, searchTerm, category string) []Product {
	term := strings.ToLower(searchTerm)
	filtered := make([]Product, 0, len(items))
	for _, p := range items {
		if term != "" &&
			!strings.Contains(strings.ToLower(p.Title), term) &&
			!strings.Contains(strings.ToLower(p.Description), term) {
			continue
		}
		if category != "" && category != AllCategories && p.Category != category {
			continue
		}
		filtered = append(filtered, p)
	}
	return filtered
}

// SortProducts returns a stably sorted copy. Titles compare case-insensitively.
func SortProducts(items []Product, key SortKey, order SortOrder) []Product {
	sorted := make([]Product, len(items))
	copy(sorted, items)

	less := lessFunc(key)
	if less == nil {
		return sorted
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		if order == Desc {
			return less(sorted[j], sorted[i])
		}
		return less(sorted[i], sorted[j])
	})
	return sorted
}

func lessFunc(key SortKey) func(a, b Product) bool {
	switch key {
	case SortByTitle:
		return func(a, b Product) bool {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
	case SortByPrice:
		return func(a, b Product) bool { return a.Price.LessThan(b.Price) }
	case SortByRating:
		return func(a, b Product) bool { return a.Rating < b.Rating }
	case SortByCreatedAt:
		return func(a, b Product) bool { return a.CreatedAt.Before(b.CreatedAt) }
	}
	return nil
}

// Popular returns in-stock products rated at least PopularMinRating, best
// rated first, at most PopularLimit of them.
func Popular(items []Product) []Product {
	popular := make([]Product, 0, PopularLimit)
	for _, p := range items {
		if p.Rating >= PopularMinRating && p.InStock() {
			popular = append(popular, p)
		}
	}
	sort.SliceStable(popular, func(i, j int) bool {
		return popular[i].Rating > popular[j].Rating
	})
	if len(popular) > PopularLimit {
		popular = popular[:PopularLimit]
	}
	return popular
}

// Related returns up to RelatedLimit in-stock products sharing the category
// of productID. An unknown productID yields an empty list.
func Related(items []Product, productID ID) []Product {
	related := make([]Product, 0, RelatedLimit)

	var current *Product
	for i := range items {
		if items[i].ID == productID {
			current = &items[i]
			break
		}
	}
	if current == nil {
		return related
	}

	for _, p := range items {
		if len(related) == RelatedLimit {
			break
		}
		if p.Category == current.Category && p.ID != productID && p.InStock() {
			related = append(related, p)
		}
	}
	return related
}

// Find returns the product with the given id
func Find(items []Product, productID ID) (Product, bool) {
	for _, p := range items {
		if p.ID == productID {
			return p, true
		}
	}
	return Product{}, false
}
