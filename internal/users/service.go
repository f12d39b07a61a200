package users

import (
	"context"
	"fmt"
	"strings"

	"github.com/depot-ops/depot-ops/internal/auth"
	"github.com/depot-ops/depot-ops/internal/platform/httpx"
	"github.com/depot-ops/depot-ops/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, in NewUser, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, update UserUpdate) error
	SetStatus(ctx context.Context, id int64, status string) error
}

// BranchChecker reports whether a branch name may be assigned.
type BranchChecker interface {
	BranchActive(ctx context.Context, name string) (bool, error)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	branches BranchChecker
}

// NewService builds Service instance. branches may be nil to skip branch checks.
func NewService(repo RepositoryPort, branches BranchChecker) *Service {
	return &Service{repo: repo, branches: branches}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser validates role and branch, hashes the password and stores the profile.
func (s *Service) CreateUser(ctx context.Context, in NewUser) (User, error) {
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Branch = strings.TrimSpace(in.Branch)
	if err := s.checkRole(in.Role); err != nil {
		return User{}, err
	}
	if err := s.checkBranch(ctx, in.Branch); err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, err
	}
	return s.repo.CreateUser(ctx, in, hash)
}

// UpdateUser edits name, role or branch.
func (s *Service) UpdateUser(ctx context.Context, id int64, update UserUpdate) error {
	if update.Role != nil {
		if err := s.checkRole(*update.Role); err != nil {
			return err
		}
	}
	if update.Branch != nil {
		trimmed := strings.TrimSpace(*update.Branch)
		update.Branch = &trimmed
		if err := s.checkBranch(ctx, trimmed); err != nil {
			return err
		}
	}
	if update.Name != nil {
		trimmed := strings.TrimSpace(*update.Name)
		if trimmed == "" {
			return fmt.Errorf("%w: name is required", httpx.ErrValidation)
		}
		update.Name = &trimmed
	}
	return s.repo.UpdateUser(ctx, id, update)
}

// SetActive enables or disables sign-in. Admins cannot deactivate themselves.
func (s *Service) SetActive(ctx context.Context, actor shared.Actor, id int64, active bool) error {
	if !active && actor.ID == id {
		return fmt.Errorf("%w: cannot deactivate your own profile", httpx.ErrConflict)
	}
	status := auth.StatusInactive
	if active {
		status = auth.StatusActive
	}
	return s.repo.SetStatus(ctx, id, status)
}

func (s *Service) checkRole(role shared.Role) error {
	if !role.IsValid() {
		return fmt.Errorf("%w: unknown role %q", httpx.ErrValidation, role)
	}
	return nil
}

func (s *Service) checkBranch(ctx context.Context, branch string) error {
	if branch == "" {
		return fmt.Errorf("%w: branch is required", httpx.ErrValidation)
	}
	if strings.EqualFold(branch, shared.AllBranches) || s.branches == nil {
		return nil
	}
	ok, err := s.branches.BranchActive(ctx, branch)
	if err != nil {
		return fmt.Errorf("users: check branch: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: branch %q is not active", httpx.ErrValidation, branch)
	}
	return nil
}
