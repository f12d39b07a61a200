package customers

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/depot-ops/depot-ops/internal/platform/httpx"
	"github.com/depot-ops/depot-ops/internal/shared"
)

type mockRepository struct {
	customers map[int64]*Customer
	audits    []shared.AuditLog
	nextID    int64
	createErr error
}

func newMockRepository() *mockRepository {
	return &mockRepository{customers: map[int64]*Customer{}, nextID: 1}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) Get(ctx context.Context, id int64) (*Customer, error) {
	c, ok := m.customers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockRepository) List(ctx context.Context, req ListCustomersRequest) ([]Customer, int, error) {
	out := []Customer{}
	for _, c := range m.customers {
		if req.Branch != "" && c.Branch != req.Branch {
			continue
		}
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (m *mockRepository) Create(ctx context.Context, customer Customer) (*Customer, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	customer.ID = m.nextID
	m.nextID++
	m.customers[customer.ID] = &customer
	return &customer, nil
}

func (m *mockRepository) Update(ctx context.Context, id int64, updates map[string]interface{}) error {
	c, ok := m.customers[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		c.Name = v.(string)
	}
	if v, ok := updates["branch"]; ok {
		c.Branch = v.(string)
	}
	if v, ok := updates["discount"]; ok {
		c.Discount = v.(decimal.Decimal)
	}
	return nil
}

func (m *mockRepository) Delete(ctx context.Context, id int64) error {
	delete(m.customers, id)
	return nil
}

func (m *mockRepository) RecordAudit(ctx context.Context, log shared.AuditLog) error {
	m.audits = append(m.audits, log)
	return nil
}

type branchSet map[string]bool

func (b branchSet) BranchActive(ctx context.Context, name string) (bool, error) {
	return b[name], nil
}

var (
	salesCibubur = shared.Actor{ID: 2, Role: shared.RoleSales, Branch: "Cibubur"}
	admin        = shared.Actor{ID: 1, Role: shared.RoleAdmin, Branch: "All"}
)

func TestCreateUsesActorBranch(t *testing.T) {
	repo := newMockRepository()
	svc := NewService(repo, branchSet{"Cibubur": true})

	c, err := svc.Create(context.Background(), salesCibubur, CreateCustomerRequest{
		Name: " Bu Rina ", Address: "Jl. Melati 3", WhatsApp: "0812", Discount: decimal.NewFromInt(1000),
	})
	require.NoError(t, err)
	assert.Equal(t, "Cibubur", c.Branch)
	assert.Equal(t, "Bu Rina", c.Name)
	require.Len(t, repo.audits, 1)
	assert.Equal(t, "create", repo.audits[0].Action)

	_, err = svc.Create(context.Background(), salesCibubur, CreateCustomerRequest{Name: "X", Address: "Y", WhatsApp: "1", Branch: "Depok"})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCreateByAllScopeNeedsActiveBranch(t *testing.T) {
	svc := NewService(newMockRepository(), branchSet{"Depok": true})

	_, err := svc.Create(context.Background(), admin, CreateCustomerRequest{Name: "X", Address: "Y", WhatsApp: "1"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Create(context.Background(), admin, CreateCustomerRequest{Name: "X", Address: "Y", WhatsApp: "1", Branch: "Bogor"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	c, err := svc.Create(context.Background(), admin, CreateCustomerRequest{Name: "X", Address: "Y", WhatsApp: "1", Branch: "Depok"})
	require.NoError(t, err)
	assert.Equal(t, "Depok", c.Branch)
}

func TestNegativeDiscountRejected(t *testing.T) {
	svc := NewService(newMockRepository(), nil)
	_, err := svc.Create(context.Background(), salesCibubur, CreateCustomerRequest{Name: "X", Address: "Y", WhatsApp: "1", Discount: decimal.NewFromInt(-5)})
	assert.ErrorIs(t, err, httpx.ErrValidation)
}

func TestGetHidesOtherBranches(t *testing.T) {
	repo := newMockRepository()
	repo.customers[7] = &Customer{ID: 7, Name: "Pak Budi", Branch: "Depok"}
	svc := NewService(repo, nil)

	_, err := svc.Get(context.Background(), salesCibubur, 7)
	assert.ErrorIs(t, err, httpx.ErrNotFound)

	c, err := svc.Get(context.Background(), admin, 7)
	require.NoError(t, err)
	assert.Equal(t, "Pak Budi", c.Name)

	list, total, err := svc.List(context.Background(), salesCibubur, ListCustomersRequest{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, list)
}

func TestUpdateDiscount(t *testing.T) {
	repo := newMockRepository()
	repo.customers[3] = &Customer{ID: 3, Name: "Warung Sari", Branch: "Cibubur"}
	svc := NewService(repo, nil)

	d := decimal.RequireFromString("1500.555")
	c, err := svc.Update(context.Background(), salesCibubur, 3, UpdateCustomerRequest{Discount: &d})
	require.NoError(t, err)
	assert.True(t, c.Discount.Equal(decimal.RequireFromString("1500.56")))
	require.Len(t, repo.audits, 1)
}

func TestCreateWrapsRepositoryError(t *testing.T) {
	repo := newMockRepository()
	repo.createErr = errors.New("boom")
	svc := NewService(repo, nil)

	_, err := svc.Create(context.Background(), salesCibubur, CreateCustomerRequest{Name: "X", Address: "Y", WhatsApp: "1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create customer")
}
