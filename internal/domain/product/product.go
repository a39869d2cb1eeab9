package product

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// AllCategories is the synthetic category that disables category filtering.
const AllCategories = "All"

var (
	ErrInvalidID      = errors.New("product id must be a string or a number")
	ErrInvalidSortKey = errors.New("unknown sort key")
	ErrInvalidOrder   = errors.New("sort order must be asc or desc")
)

// ID is the canonical product identifier. The backend may send it as a JSON
// number or a JSON string; both decode to the same string form.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return errors.Wrapf(ErrInvalidID, "id %s", data)
		}
		*id = ID(n.String())
		return nil
	}
}

func (id ID) String() string {
	return string(id)
}

// Product is read-only on the client: fetched, never mutated locally.
type Product struct {
	ID                 ID              `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description"`
	Price              decimal.Decimal `json:"price"`
	Category           string          `json:"category"`
	Rating             float64         `json:"rating"`
	Stock              int             `json:"stock"`
	Thumbnail          string          `json:"thumbnail"`
	DiscountPercentage *float64        `json:"discountPercentage,omitempty"`
	CreatedAt          time.Time       `json:"createdAt"`
}

// InStock reports whether at least one unit is available
func (p Product) InStock() bool {
	return p.Stock > 0
}

type SortKey string

const (
	SortByTitle     SortKey = "title"
	SortByPrice     SortKey = "price"
	SortByRating    SortKey = "rating"
	SortByCreatedAt SortKey = "createdAt"
)

func ParseSortKey(s string) (SortKey, error) {
	switch k := SortKey(s); k {
	case SortByTitle, SortByPrice, SortByRating, SortByCreatedAt:
		return k, nil
	}
	return "", errors.Wrapf(ErrInvalidSortKey, "sort key %q", s)
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

func ParseSortOrder(s string) (SortOrder, error) {
	switch o := SortOrder(s); o {
	case Asc, Desc:
		return o, nil
	}
	return "", errors.Wrapf(ErrInvalidOrder, "sort order %q", s)
}

// Criteria drives the derived catalog views. It is transient UI state.
type Criteria struct {
	SearchTerm string    `json:"searchTerm"`
	Category   string    `json:"category"`
	SortBy     SortKey   `json:"sortBy"`
	SortOrder  SortOrder `json:"sortOrder"`
}

// DefaultCriteria shows every category sorted by title ascending
func DefaultCriteria() Criteria {
	return Criteria{
		Category:  AllCategories,
		SortBy:    SortByTitle,
		SortOrder: Asc,
	}
}
