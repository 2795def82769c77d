package court

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
)

type CreateRequest struct {
	Name       string
	HourlyRate decimal.Decimal
}

type UpdateRequest struct {
	Name       *string
	HourlyRate *decimal.Decimal
	Status     *string
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Court, error)
	GetByID(ctx context.Context, id string) (*Court, error)
	List(ctx context.Context, filter Filter) ([]*Court, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Court, error)

	// Get reads the court through the caller's querier, for use inside
	// an open transaction.
	Get(ctx context.Context, q db.Querier, id string) (*Court, error)
}

type service struct {
	db   db.DB
	repo Repository
}

func NewService(database db.DB, repo Repository) Service {
	return &service{db: database, repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Court, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}
	if !req.HourlyRate.IsPositive() {
		return nil, ErrInvalidRate
	}

	c := &Court{
		Name:       req.Name,
		HourlyRate: req.HourlyRate.Round(2),
		Status:     StatusActive,
	}

	if err := s.repo.Create(ctx, s.db, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Court, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *service) Get(ctx context.Context, q db.Querier, id string) (*Court, error) {
	return s.repo.GetByID(ctx, q, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Court, int, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Court, error) {
	c, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrEmptyName
		}
		c.Name = *req.Name
	}
	if req.HourlyRate != nil {
		if !req.HourlyRate.IsPositive() {
			return nil, ErrInvalidRate
		}
		c.HourlyRate = req.HourlyRate.Round(2)
	}
	if req.Status != nil {
		st := Status(*req.Status)
		if !ValidStatus(st) {
			return nil, ErrInvalidStatus
		}
		c.Status = st
	}

	if err := s.repo.Update(ctx, s.db, c); err != nil {
		return nil, err
	}
	return c, nil
}
