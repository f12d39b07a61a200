package customers

import (
	"context"
	"fmt"
	"strings"

	"github.com/depot-ops/depot-ops/internal/shared"
)

// BranchChecker reports whether a branch name may be assigned.
type BranchChecker interface {
	BranchActive(ctx context.Context, name string) (bool, error)
}

type Service struct {
	repo     Repository
	branches BranchChecker
}

func NewService(repo Repository, branches BranchChecker) *Service {
	return &Service{repo: repo, branches: branches}
}

// resolveBranch picks the branch for a customer written by actor. Actors bound
// to a branch always write into it.
func (s *Service) resolveBranch(ctx context.Context, actor shared.Actor, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	if !actor.AllBranches() {
		if requested != "" && requested != actor.BranchFilter() {
			return "", fmt.Errorf("%w: branch %q is outside your scope", ErrInvalid, requested)
		}
		return actor.BranchFilter(), nil
	}
	if requested == "" || strings.EqualFold(requested, shared.AllBranches) {
		return "", fmt.Errorf("%w: branch is required", ErrInvalid)
	}
	if s.branches != nil {
		ok, err := s.branches.BranchActive(ctx, requested)
		if err != nil {
			return "", fmt.Errorf("check branch: %w", err)
		}
		if !ok {
			return "", fmt.Errorf("%w: branch %q is not active", ErrInvalid, requested)
		}
	}
	return requested, nil
}

func (s *Service) Create(ctx context.Context, actor shared.Actor, req CreateCustomerRequest) (*Customer, error) {
	if req.Discount.IsNegative() {
		return nil, fmt.Errorf("%w: discount must not be negative", ErrInvalid)
	}
	branch, err := s.resolveBranch(ctx, actor, req.Branch)
	if err != nil {
		return nil, err
	}
	customer := Customer{
		Name:     strings.TrimSpace(req.Name),
		Address:  strings.TrimSpace(req.Address),
		WhatsApp: strings.TrimSpace(req.WhatsApp),
		Branch:   branch,
		Discount: req.Discount.Round(2),
	}

	var created *Customer
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		created, err = repo.Create(ctx, customer)
		if err != nil {
			return err
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "create", Entity: "customer", EntityID: fmt.Sprint(created.ID),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("create customer: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, actor shared.Actor, id int64, req UpdateCustomerRequest) (*Customer, error) {
	existing, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.Address != nil {
		updates["address"] = strings.TrimSpace(*req.Address)
	}
	if req.WhatsApp != nil {
		updates["whatsapp"] = strings.TrimSpace(*req.WhatsApp)
	}
	if req.Branch != nil {
		branch, err := s.resolveBranch(ctx, actor, *req.Branch)
		if err != nil {
			return nil, err
		}
		updates["branch"] = branch
	}
	if req.Discount != nil {
		if req.Discount.IsNegative() {
			return nil, fmt.Errorf("%w: discount must not be negative", ErrInvalid)
		}
		updates["discount"] = req.Discount.Round(2)
	}

	if len(updates) == 0 {
		return existing, nil
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		if err := repo.Update(ctx, id, updates); err != nil {
			return err
		}
		return repo.RecordAudit(ctx, shared.AuditLog{
			ActorID: actor.ID, Action: "update", Entity: "customer", EntityID: fmt.Sprint(id), Meta: updates,
		})
	})
	if err != nil {
		return nil, fmt.Errorf("update customer: %w", err)
	}
	return s.repo.Get(ctx, id)
}

// Get returns the customer when it lies in the actor's branch scope.
func (s *Service) Get(ctx context.Context, actor shared.Actor, id int64) (*Customer, error) {
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.SeesBranch(c.Branch) {
		return nil, ErrNotFound
	}
	return c, nil
}

func (s *Service) List(ctx context.Context, actor shared.Actor, req ListCustomersRequest) ([]Customer, int, error) {
	req.Branch = actor.BranchFilter()
	if req.Limit <= 0 || req.Limit > 200 {
		req.Limit = 50
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	return s.repo.List(ctx, req)
}

func (s *Service) Delete(ctx context.Context, actor shared.Actor, id int64) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.repo.Delete(ctx, id)
}
