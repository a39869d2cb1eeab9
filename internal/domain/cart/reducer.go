package cart

import "github.com/example/ec-storefront/internal/domain/product"

// Action is a cart transition understood by Reduce
type Action interface {
	action()
}

// AddLine merges Line into the cart, incrementing the quantity of an
// existing line for the same product.
type AddLine struct {
	Line Line
}

// SetQuantity replaces a line's quantity. A quantity of zero or less removes
// the line.
type SetQuantity struct {
	ProductID product.ID
	Quantity  int
}

type RemoveLine struct {
	ProductID product.ID
}

type ClearLines struct{}

// ReplaceLines swaps in an authoritative set of lines, e.g. the server cart
type ReplaceLines struct {
	Lines []Line
}

func (AddLine) action()      {}
func (SetQuantity) action()  {}
func (RemoveLine) action()   {}
func (ClearLines) action()   {}
func (ReplaceLines) action() {}

// Reduce returns the cart that results from applying a to c. c is never
// modified; totals are recomputed in the same step.
func Reduce(c Cart, a Action) Cart {
	switch a := a.(type) {
	case AddLine:
		if a.Line.ProductID == "" || a.Line.Quantity <= 0 {
			return withTotals(c.clone())
		}
		lines := c.clone()
		for i := range lines {
			if lines[i].ProductID == a.Line.ProductID {
				lines[i].Quantity += a.Line.Quantity
				return withTotals(lines)
			}
		}
		return withTotals(append(lines, a.Line))

	case SetQuantity:
		if a.Quantity <= 0 {
			return Reduce(c, RemoveLine{ProductID: a.ProductID})
		}
		lines := c.clone()
		for i := range lines {
			if lines[i].ProductID == a.ProductID {
				lines[i].Quantity = a.Quantity
				break
			}
		}
		return withTotals(lines)

	case RemoveLine:
		lines := make([]Line, 0, len(c.Lines))
		for _, l := range c.Lines {
			if l.ProductID != a.ProductID {
				lines = append(lines, l)
			}
		}
		return withTotals(lines)

	case ClearLines:
		return withTotals([]Line{})

	case ReplaceLines:
		return NewCart(a.Lines)
	}
	return withTotals(c.clone())
}
