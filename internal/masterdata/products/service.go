package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/depot-ops/depot-ops/internal/masterdata/shared"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
)

// ErrInUse is returned when deleting a product referenced by order lines.
var ErrInUse = fmt.Errorf("%w: product is referenced by orders", httpx.ErrConflict)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	if id <= 0 {
		return Product{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, product Product) (Product, error) {
	product = normalize(product)
	if err := s.validate(product); err != nil {
		return Product{}, err
	}
	return s.repo.Create(ctx, product)
}

func (s *Service) Update(ctx context.Context, id int64, product Product) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	product = normalize(product)
	if err := s.validate(product); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, product)
}

// SetActive toggles whether the product can be ordered.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	status := shared.StatusInactive
	if active {
		status = shared.StatusActive
	}
	return s.repo.SetStatus(ctx, id, status)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	return s.repo.Delete(ctx, id)
}

func normalize(p Product) Product {
	p.Name = strings.TrimSpace(p.Name)
	if p.Status == "" {
		p.Status = shared.StatusActive
	}
	p.Price = p.Price.Round(2)
	return p
}
