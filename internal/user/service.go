package user

import (
	"context"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

type Service interface {
	GetByID(ctx context.Context, id string) (*User, error)

	// EnsureActive verifies the user exists and may book, using the
	// caller's querier so the check joins an open transaction.
	EnsureActive(ctx context.Context, q db.Querier, id string) error
}

type service struct {
	db   db.DB
	repo Repository
}

func NewService(database db.DB, repo Repository) Service {
	return &service{db: database, repo: repo}
}

func (s *service) GetByID(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *service) EnsureActive(ctx context.Context, q db.Querier, id string) error {
	u, err := s.repo.GetByID(ctx, q, id)
	if err != nil {
		return err
	}
	if !u.IsActive {
		return ErrInactive
	}
	return nil
}
