package cart

import (
	"github.com/shopspring/decimal"

	"github.com/example/ec-storefront/internal/apperrors"
	"github.com/example/ec-storefront/internal/domain/product"
)

var (
	ErrInvalidQuantity = &apperrors.Error{Kind: apperrors.KindValidation, Message: "quantity must be positive"}
	ErrInvalidProduct  = &apperrors.Error{Kind: apperrors.KindValidation, Message: "product id is required"}
)

// Line is one product entry in a cart. Title, price and thumbnail are a
// snapshot taken when the product was added.
type Line struct {
	ProductID product.ID      `json:"productId"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Quantity  int             `json:"quantity"`
}

func (l Line) Subtotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// LineFromProduct snapshots p into a cart line
func LineFromProduct(p product.Product, quantity int) Line {
	return Line{
		ProductID: p.ID,
		Title:     p.Title,
		Price:     p.Price,
		Thumbnail: p.Thumbnail,
		Quantity:  quantity,
	}
}

// Cart holds lines unique by product id. Total and Count always describe
// Lines; only Reduce and NewCart produce a Cart.
type Cart struct {
	Lines []Line          `json:"items"`
	Total decimal.Decimal `json:"total"`
	Count int             `json:"count"`
}

// NewCart builds a cart from raw lines. Lines without a product id or with a
// non-positive quantity are dropped and duplicates are merged.
func NewCart(lines []Line) Cart {
	normalized := make([]Line, 0, len(lines))
	index := make(map[product.ID]int, len(lines))
	for _, l := range lines {
		if l.ProductID == "" || l.Quantity <= 0 {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			normalized[i].Quantity += l.Quantity
			continue
		}
		index[l.ProductID] = len(normalized)
		normalized = append(normalized, l)
	}
	return withTotals(normalized)
}

// Totals computes Σ price × quantity and Σ quantity over lines
func Totals(lines []Line) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, l := range lines {
		total = total.Add(l.Subtotal())
		count += l.Quantity
	}
	return total, count
}

func withTotals(lines []Line) Cart {
	total, count := Totals(lines)
	return Cart{Lines: lines, Total: total, Count: count}
}

// Line returns the line for productID
func (c Cart) Line(productID product.ID) (Line, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return Line{}, false
}

func (c Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c Cart) clone() []Line {
	lines := make([]Line, len(c.Lines))
	copy(lines, c.Lines)
	return lines
}
