package apiclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"

	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/domain/product"
)

var _ product.Source = (*Client)(nil)

// ListProducts calls GET /products
func (c *Client) ListProducts(ctx context.Context, q product.Query) (*product.Listing, error) {
	body, err := c.do(ctx, http.MethodGet, "/products", q.Values(), nil)
	if err != nil {
		return nil, err
	}
	listing, err := product.DecodeListing(body)
	if err != nil {
		return nil, apperrors.Unexpected(errors.Wrap(err, "decode products"))
	}
	return listing, nil
}

// GetProduct calls GET /products/{id}. The product may come bare or wrapped
// in a "product" or "data" field.
func (c *Client) GetProduct(ctx context.Context, id product.ID) (*product.Product, error) {
	if id == "" {
		return nil, apperrors.Validation("product id is required")
	}
	body, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id.String()), nil, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Product *product.Product `json:"product"`
		Data    *product.Product `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, apperrors.Unexpected(errors.Wrap(err, "decode product"))
	}
	switch {
	case envelope.Product != nil:
		return envelope.Product, nil
	case envelope.Data != nil:
		return envelope.Data, nil
	}

	var p product.Product
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, apperrors.Unexpected(errors.Wrap(err, "decode product"))
	}
	if p.ID == "" {
		return nil, apperrors.Unexpected(errors.New("product response without id"))
	}
	return &p, nil
}
