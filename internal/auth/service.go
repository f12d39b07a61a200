package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"golang.org/x/crypto/bcrypt"

	"github.com/depot-ops/depot-ops/internal/shared"
)

// Auditor records sign-in events.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service wraps authentication business rules.
type Service struct {
	repo  Repository
	audit Auditor
}

// NewService constructs a new Service. audit may be nil.
func NewService(repo Repository, audit Auditor) *Service {
	return &Service{repo: repo, audit: audit}
}

// Authenticate validates email/password credentials.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Profile, error) {
	profile, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("auth: find profile: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(profile.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !profile.IsActive() {
		return nil, shared.ErrInactiveAccount
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  profile.ID,
			Action:   "login",
			Entity:   "profile",
			EntityID: strconv.FormatInt(profile.ID, 10),
		})
	}
	return profile, nil
}

// ResolveActor loads the active profile behind a session user id.
func (s *Service) ResolveActor(ctx context.Context, userID string) (shared.Actor, error) {
	id, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return shared.Actor{}, shared.ErrNotFound
	}
	profile, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return shared.Actor{}, err
	}
	if !profile.IsActive() {
		return shared.Actor{}, shared.ErrInactiveAccount
	}
	return profile.Actor(), nil
}

// HashPassword returns the bcrypt hash stored for new or reset profiles.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("auth: hash password: %w", err)
	}
	return string(hashed), nil
}
