package domain

import "errors"

var (
	ErrLineNotFound = errors.New("cart line not found")
	ErrBadQuantity  = errors.New("quantity must be at least 1")
)

// Line is one (product, quantity) pair in a customer's cart. A cart never
// holds two lines for the same product and never holds a zero quantity.
type Line struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type Cart struct {
	CustomerID string `json:"customerId"`
	Lines      []Line `json:"lines"`
}

func (c Cart) Empty() bool { return len(c.Lines) == 0 }

// Quantity returns the quantity currently carted for a product, zero when
// the product is not in the cart.
func (c Cart) Quantity(productID string) int {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l.Quantity
		}
	}
	return 0
}
