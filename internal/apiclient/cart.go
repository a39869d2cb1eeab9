package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/domain/cart"
	"github.com/example/ec-storefront/internal/domain/product"
)

var _ cart.Remote = (*Client)(nil)

type cartItem struct {
	ProductID product.ID       `json:"productId"`
	Product   *product.Product `json:"product"`
	Title     string           `json:"title"`
	Price     decimal.Decimal  `json:"price"`
	Thumbnail string           `json:"thumbnail"`
	Quantity  int              `json:"quantity"`
}

func (i cartItem) line() cart.Line {
	l := cart.Line{
		ProductID: i.ProductID,
		Title:     i.Title,
		Price:     i.Price,
		Thumbnail: i.Thumbnail,
		Quantity:  i.Quantity,
	}
	if p := i.Product; p != nil {
		if l.ProductID == "" {
			l.ProductID = p.ID
		}
		if l.Title == "" {
			l.Title = p.Title
		}
		if l.Price.IsZero() {
			l.Price = p.Price
		}
		if l.Thumbnail == "" {
			l.Thumbnail = p.Thumbnail
		}
	}
	return l
}

type cartBody struct {
	Items *[]cartItem `json:"items"`
	Cart  *cartBody   `json:"cart"`
}

// decodeCart returns nil lines when the body carries no cart
func decodeCart(body []byte) ([]cart.Line, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var b cartBody
	if err := json.Unmarshal(body, &b); err != nil {
		return nil, apperrors.Unexpected(errors.Wrap(err, "decode cart"))
	}
	if b.Items == nil && b.Cart != nil {
		b = *b.Cart
	}
	if b.Items == nil {
		return nil, nil
	}

	lines := make([]cart.Line, 0, len(*b.Items))
	for _, item := range *b.Items {
		lines = append(lines, item.line())
	}
	return lines, nil
}

func (c *Client) GetCart(ctx context.Context) ([]cart.Line, error) {
	body, err := c.do(ctx, http.MethodGet, "/cart", nil, nil)
	if err != nil {
		return nil, err
	}
	lines, err := decodeCart(body)
	if err != nil {
		return nil, err
	}
	if lines == nil {
		lines = []cart.Line{}
	}
	return lines, nil
}

func (c *Client) AddItem(ctx context.Context, productID product.ID, quantity int) ([]cart.Line, error) {
	req := struct {
		ProductID product.ID `json:"productId"`
		Quantity  int        `json:"quantity"`
	}{productID, quantity}

	body, err := c.do(ctx, http.MethodPost, "/cart", nil, req)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func (c *Client) UpdateItem(ctx context.Context, productID product.ID, quantity int) ([]cart.Line, error) {
	req := struct {
		Quantity int `json:"quantity"`
	}{quantity}

	body, err := c.do(ctx, http.MethodPut, cartItemPath(productID), nil, req)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func (c *Client) RemoveItem(ctx context.Context, productID product.ID) ([]cart.Line, error) {
	body, err := c.do(ctx, http.MethodDelete, cartItemPath(productID), nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func (c *Client) ClearCart(ctx context.Context) ([]cart.Line, error) {
	body, err := c.do(ctx, http.MethodDelete, "/cart", nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeCart(body)
}

func cartItemPath(productID product.ID) string {
	return "/cart/" + url.PathEscape(productID.String())
}
