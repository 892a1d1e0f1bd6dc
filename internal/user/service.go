package user

import (
	"context"
	"fmt"
)

type Repository interface {
	GetByID(ctx context.Context, userID int64) (*User, error)
	GetPermissions(ctx context.Context, userID int64) ([]string, error)
	ListDentists(ctx context.Context) ([]*User, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, userID int64) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user by id: %w", err)
	}

	perms, err := s.repo.GetPermissions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user permissions: %w", err)
	}
	u.Permissions = perms

	return u, nil
}

// ListDentists returns the active dentists patients can book with.
func (s *Service) ListDentists(ctx context.Context) ([]*User, error) {
	dentists, err := s.repo.ListDentists(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list dentists: %w", err)
	}
	return dentists, nil
}
