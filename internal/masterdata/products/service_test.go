package products

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/masterdata/shared"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
)

type mockRepository struct {
	products  map[int64]Product
	nextID    int64
	deleteErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{products: map[int64]Product{}, nextID: 1}
}

func (m *mockRepository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	out := []Product{}
	for _, p := range m.products {
		out = append(out, p)
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (Product, error) {
	p, ok := m.products[id]
	if !ok {
		return Product{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *mockRepository) Create(ctx context.Context, product Product) (Product, error) {
	product.ID = m.nextID
	m.nextID++
	m.products[product.ID] = product
	return product, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, product Product) error {
	if _, ok := m.products[id]; !ok {
		return shared.ErrNotFound
	}
	product.ID = id
	m.products[id] = product
	return nil
}

func (m *mockRepository) SetStatus(ctx context.Context, id int64, status string) error {
	p, ok := m.products[id]
	if !ok {
		return shared.ErrNotFound
	}
	p.Status = status
	m.products[id] = p
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.products, id)
	return nil
}

func TestCreateProductRoundsPrice(t *testing.T) {
	svc := NewService(newMockRepository())

	p, err := svc.Create(context.Background(), Product{Name: "Galon Refill", Price: decimal.RequireFromString("6000.004"), IsRefill: true})
	require.NoError(t, err)
	assert.True(t, p.Price.Equal(decimal.NewFromInt(6000)))
	assert.True(t, p.Orderable())
}

func TestCreateProductValidation(t *testing.T) {
	svc := NewService(newMockRepository())

	_, err := svc.Create(context.Background(), Product{Name: " "})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), Product{Name: "Galon", Price: decimal.NewFromInt(-1)})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), Product{Name: "Galon", Price: decimal.NewFromInt(1), Status: "archived"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestDeactivatedProductIsNotOrderable(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo)
	p, err := svc.Create(context.Background(), Product{Name: "Botol 600ml", Price: decimal.NewFromInt(3000)})
	require.NoError(t, err)

	require.NoError(t, svc.SetActive(context.Background(), p.ID, false))
	got, err := svc.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.Orderable())
}

func TestDeleteInUseMapsToConflict(t *testing.T) {
	repo := newMockRepository()
	repo.deleteErr = ErrInUse
	svc := NewService(repo)

	err := svc.Delete(context.Background(), 1)
	assert.ErrorIs(t, err, httpx.ErrConflict)
}
