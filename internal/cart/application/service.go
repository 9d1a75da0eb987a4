package application

import (
	"context"
	"log/slog"

	cartdomain "github.com/commercekit/fulfillment/internal/cart/domain"
	catalogdomain "github.com/commercekit/fulfillment/internal/catalog/domain"
)

type CartStore interface {
	Get(ctx context.Context, customerID string) (cartdomain.Cart, error)
	AddItem(ctx context.Context, customerID, productID string, quantity int) error
	SetQuantity(ctx context.Context, customerID, productID string, quantity int) error
	RemoveItem(ctx context.Context, customerID, productID string) error
	Clear(ctx context.Context, customerID string) error
}

type Catalog interface {
	Find(ctx context.Context, id string) (catalogdomain.Product, error)
}

// Service validates cart mutations against the catalog before delegating to
// the store. The store itself has no inventory awareness.
type Service struct {
	log     *slog.Logger
	carts   CartStore
	catalog Catalog
}

func NewService(log *slog.Logger, carts CartStore, catalog Catalog) *Service {
	return &Service{log: log, carts: carts, catalog: catalog}
}

func (s *Service) Get(ctx context.Context, customerID string) (cartdomain.Cart, error) {
	return s.carts.Get(ctx, customerID)
}

// AddItem rejects inactive products and requests that would cart more units
// than are in stock, counting what is already in the cart.
func (s *Service) AddItem(ctx context.Context, customerID, productID string, quantity int) error {
	if quantity < 1 {
		return cartdomain.ErrBadQuantity
	}
	p, err := s.catalog.Find(ctx, productID)
	if err != nil {
		return err
	}
	if !p.Active {
		return catalogdomain.ErrProductNotFound
	}

	cart, err := s.carts.Get(ctx, customerID)
	if err != nil {
		return err
	}
	if cart.Quantity(productID)+quantity > p.Stock {
		return &catalogdomain.InsufficientStockError{ProductName: p.Name}
	}
	return s.carts.AddItem(ctx, customerID, productID, quantity)
}

func (s *Service) SetQuantity(ctx context.Context, customerID, productID string, quantity int) error {
	if quantity < 1 {
		return cartdomain.ErrBadQuantity
	}
	p, err := s.catalog.Find(ctx, productID)
	if err != nil {
		return err
	}
	if quantity > p.Stock {
		return &catalogdomain.InsufficientStockError{ProductName: p.Name}
	}
	return s.carts.SetQuantity(ctx, customerID, productID, quantity)
}

func (s *Service) RemoveItem(ctx context.Context, customerID, productID string) error {
	return s.carts.RemoveItem(ctx, customerID, productID)
}

func (s *Service) Clear(ctx context.Context, customerID string) error {
	return s.carts.Clear(ctx, customerID)
}
