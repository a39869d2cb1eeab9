package product

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/go-faster/errors"
)

var ErrUnrecognizedListing = errors.New("unrecognized product listing")

// Query is the server-side filter for GET /products
type Query struct {
	Page      int
	Limit     int
	Search    string
	Category  string
	Sort      SortKey
	SortOrder SortOrder
}

// Values encodes q as URL query parameters, omitting zero fields and the
// "All" category.
func (q Query) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	if q.Category != "" && q.Category != AllCategories {
		v.Set("category", q.Category)
	}
	if q.Sort != "" {
		v.Set("sort", string(q.Sort))
	}
	if q.SortOrder != "" {
		v.Set("sortOrder", string(q.SortOrder))
	}
	return v
}

// Listing is a normalized GET /products response
type Listing struct {
	Items      []Product `json:"products"`
	Page       int       `json:"page"`
	TotalPages int       `json:"totalPages"`
	Total      int       `json:"total"`

	// Cached is set when the listing was served from the response cache
	Cached bool `json:"-"`
}

type pagination struct {
	Page       *int `json:"page"`
	TotalPages *int `json:"totalPages"`
	Total      *int `json:"total"`
}

type listingEnvelope struct {
	Products   *[]Product  `json:"products"`
	Page       *int        `json:"page"`
	TotalPages *int        `json:"totalPages"`
	Total      *int        `json:"total"`
	Pagination *pagination `json:"pagination"`
}

// DecodeListing accepts either a bare product array or an envelope object
// with a "products" array and optional page counters (top level or nested
// under "pagination").
func DecodeListing(body []byte) (*Listing, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errors.Wrap(ErrUnrecognizedListing, "empty body")
	}

	switch trimmed[0] {
	case '[':
		var items []Product
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, errors.Wrap(err, "decode products")
		}
		if items == nil {
			items = []Product{}
		}
		return &Listing{Items: items, Page: 1, TotalPages: 1, Total: len(items)}, nil

	case '{':
		var env listingEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, errors.Wrap(err, "decode products envelope")
		}
		if env.Products == nil {
			return nil, errors.Wrap(ErrUnrecognizedListing, "envelope without products")
		}

		items := *env.Products
		if items == nil {
			items = []Product{}
		}
		listing := &Listing{Items: items, Page: 1, TotalPages: 1, Total: len(items)}

		counters := pagination{Page: env.Page, TotalPages: env.TotalPages, Total: env.Total}
		if env.Pagination != nil {
			counters = *env.Pagination
		}
		if counters.Page != nil {
			listing.Page = *counters.Page
		}
		if counters.TotalPages != nil {
			listing.TotalPages = *counters.TotalPages
		}
		if counters.Total != nil {
			listing.Total = *counters.Total
		}
		return listing, nil
	}

	return nil, errors.Wrapf(ErrUnrecognizedListing, "unexpected %q", trimmed[0])
}
