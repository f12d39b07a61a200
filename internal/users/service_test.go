package users

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/depot-ops/depot-ops/internal/platform/httpx"
	"github.com/depot-ops/depot-ops/internal/shared"
)

type mockRepo struct {
	users  map[int64]User
	hashes map[int64]string
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{users: map[int64]User{}, hashes: map[int64]string{}, nextID: 1}
}

func (m *mockRepo) ListUsers(ctx context.Context) ([]User, error) {
	out := []User{}
	for _, u := range m.users {
		out = append(out, u)
	}
	return out, nil
}

func (m *mockRepo) GetUser(ctx context.Context, id int64) (User, error) {
	u, ok := m.users[id]
	if !ok {
		return User{}, httpx.ErrNotFound
	}
	return u, nil
}

func (m *mockRepo) CreateUser(ctx context.Context, in NewUser, passwordHash string) (User, error) {
	u := User{ID: m.nextID, Email: in.Email, Name: in.Name, Role: in.Role, Branch: in.Branch, Status: "active"}
	m.nextID++
	m.users[u.ID] = u
	m.hashes[u.ID] = passwordHash
	return u, nil
}

func (m *mockRepo) UpdateUser(ctx context.Context, id int64, update UserUpdate) error {
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	if update.Role != nil {
		u.Role = *update.Role
	}
	if update.Branch != nil {
		u.Branch = *update.Branch
	}
	m.users[id] = u
	return nil
}

func (m *mockRepo) SetStatus(ctx context.Context, id int64, status string) error {
	u, ok := m.users[id]
	if !ok {
		return httpx.ErrNotFound
	}
	u.Status = status
	m.users[id] = u
	return nil
}

type branchSet map[string]bool

func (b branchSet) BranchActive(ctx context.Context, name string) (bool, error) {
	return b[name], nil
}

func TestCreateUserHashesPassword(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, branchSet{"Cibubur": true})

	u, err := svc.CreateUser(context.Background(), NewUser{Email: " op@depot.local ", Name: "Op", Password: "rahasia123", Role: shared.RoleOperator, Branch: "Cibubur"})
	require.NoError(t, err)
	assert.Equal(t, "op@depot.local", u.Email)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.hashes[u.ID]), []byte("rahasia123")))
}

func TestCreateUserRejectsUnknownRoleAndBranch(t *testing.T) {
	svc := NewService(newMockRepo(), branchSet{"Cibubur": true})

	_, err := svc.CreateUser(context.Background(), NewUser{Email: "a@b.c", Name: "A", Password: "rahasia123", Role: "driver", Branch: "Cibubur"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateUser(context.Background(), NewUser{Email: "a@b.c", Name: "A", Password: "rahasia123", Role: shared.RoleSales, Branch: "Bogor"})
	assert.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.CreateUser(context.Background(), NewUser{Email: "a@b.c", Name: "A", Password: "rahasia123", Role: shared.RoleAdmin, Branch: "All"})
	assert.NoError(t, err)
}

func TestUpdateUserRoleAndBranch(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, branchSet{"Cibubur": true, "Depok": true})
	u, err := svc.CreateUser(context.Background(), NewUser{Email: "s@d.l", Name: "S", Password: "rahasia123", Role: shared.RoleSales, Branch: "Cibubur"})
	require.NoError(t, err)

	role := shared.RoleFinance
	branch := " Depok "
	require.NoError(t, svc.UpdateUser(context.Background(), u.ID, UserUpdate{Role: &role, Branch: &branch}))
	got, _ := svc.GetUser(context.Background(), u.ID)
	assert.Equal(t, shared.RoleFinance, got.Role)
	assert.Equal(t, "Depok", got.Branch)

	blank := "  "
	assert.ErrorIs(t, svc.UpdateUser(context.Background(), u.ID, UserUpdate{Name: &blank}), httpx.ErrValidation)
}

func TestSetActiveBlocksSelfDeactivation(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, nil)
	u, err := svc.CreateUser(context.Background(), NewUser{Email: "x@d.l", Name: "X", Password: "rahasia123", Role: shared.RoleAdmin, Branch: "All"})
	require.NoError(t, err)

	err = svc.SetActive(context.Background(), shared.Actor{ID: u.ID, Role: shared.RoleAdmin}, u.ID, false)
	assert.ErrorIs(t, err, httpx.ErrConflict)

	require.NoError(t, svc.SetActive(context.Background(), shared.Actor{ID: 99, Role: shared.RoleAdmin}, u.ID, false))
	assert.Equal(t, "inactive", repo.users[u.ID].Status)
}
