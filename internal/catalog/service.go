package catalog

import (
	"context"
	"errors"
)

// Service exposes catalog reads to the engine.
type Service struct {
	repo Repository
}

// NewService builds Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, businessID, productID int64) (Product, error) {
	if businessID <= 0 || productID <= 0 {
		return Product{}, errors.New("catalog: business and product required")
	}
	return s.repo.Get(ctx, businessID, productID)
}

// List returns products for a business.
func (s *Service) List(ctx context.Context, businessID int64, limit int) ([]Product, error) {
	if businessID <= 0 {
		return nil, errors.New("catalog: business required")
	}
	return s.repo.List(ctx, businessID, limit)
}

// FallbackCost resolves the catalog purchase cost used when the movement
// log has no costed receipts for the product.
func (s *Service) FallbackCost(ctx context.Context, businessID, productID int64) (*int64, error) {
	product, err := s.repo.Get(ctx, businessID, productID)
	if err != nil {
		return nil, err
	}
	return product.FallbackPurchaseCost, nil
}
