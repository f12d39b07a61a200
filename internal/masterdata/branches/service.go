package branches

import (
	"context"
	"errors"
	"strings"

	"github.com/depot-ops/depot-ops/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Branch, int, error) {
	filters.Normalize()
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Branch, error) {
	if id <= 0 {
		return Branch{}, shared.ErrInvalidID
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, branch Branch) (Branch, error) {
	branch = normalize(branch)
	if err := s.validate(branch); err != nil {
		return Branch{}, err
	}
	return s.repo.Create(ctx, branch)
}

func (s *Service) Update(ctx context.Context, id int64, branch Branch) error {
	if id <= 0 {
		return shared.ErrInvalidID
	}
	branch = normalize(branch)
	if err := s.validate(branch); err != nil {
		return err
	}
	return s.repo.Update(ctx, id, branch)
}

// SetActive toggles whether the branch can be picked for new records.
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

// BranchActive reports whether name is an active branch. It backs the
// branch checks in customers and users.
func (s *Service) BranchActive(ctx context.Context, name string) (bool, error) {
	b, err := s.repo.GetByName(ctx, name)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return b.Status == shared.StatusActive, nil
}

func normalize(b Branch) Branch {
	b.Name = strings.TrimSpace(b.Name)
	if b.Status == "" {
		b.Status = shared.StatusActive
	}
	return b
}
