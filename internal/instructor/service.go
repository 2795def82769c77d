package instructor

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

type CreateRequest struct {
	Name       string
	HourlyRate decimal.Decimal
}

type UpdateRequest struct {
	Name       *string
	HourlyRate *decimal.Decimal
	IsActive   *bool
}

type WindowRequest struct {
	Weekday  time.Weekday
	StartMin int
	EndMin   int
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Instructor, error)
	GetByID(ctx context.Context, id string) (*Instructor, error)
	List(ctx context.Context, filter Filter) ([]*Instructor, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*Instructor, error)

	// Get reads the instructor through the caller's querier, for use
	// inside an open transaction.
	Get(ctx context.Context, q db.Querier, id string) (*Instructor, error)

	AddWindow(ctx context.Context, instructorID string, req WindowRequest) (*AvailabilityWindow, error)
	UpdateWindow(ctx context.Context, windowID string, req WindowRequest) (*AvailabilityWindow, error)
	RemoveWindow(ctx context.Context, windowID string) error
	ListWindows(ctx context.Context, instructorID string) ([]*AvailabilityWindow, error)

	// WindowCovering reports whether iv fits entirely inside one of the
	// instructor's windows on iv's weekday.
	WindowCovering(ctx context.Context, q db.Querier, instructorID string, iv interval.Interval) (bool, error)
}

type service struct {
	db   db.DB
	repo Repository
}

func NewService(database db.DB, repo Repository) Service {
	return &service{db: database, repo: repo}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*Instructor, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, ErrEmptyName
	}
	if !req.HourlyRate.IsPositive() {
		return nil, ErrInvalidRate
	}

	ins := &Instructor{
		Name:       req.Name,
		HourlyRate: req.HourlyRate.Round(2),
		IsActive:   true,
	}

	if err := s.repo.Create(ctx, s.db, ins); err != nil {
		return nil, err
	}
	return ins, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Instructor, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *service) Get(ctx context.Context, q db.Querier, id string) (*Instructor, error) {
	return s.repo.GetByID(ctx, q, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]*Instructor, int, error) {
	return s.repo.List(ctx, s.db, filter)
}

func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*Instructor, error) {
	ins, err := s.repo.GetByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if strings.TrimSpace(*req.Name) == "" {
			return nil, ErrEmptyName
		}
		ins.Name = *req.Name
	}
	if req.HourlyRate != nil {
		if !req.HourlyRate.IsPositive() {
			return nil, ErrInvalidRate
		}
		ins.HourlyRate = req.HourlyRate.Round(2)
	}
	if req.IsActive != nil {
		ins.IsActive = *req.IsActive
	}

	if err := s.repo.Update(ctx, s.db, ins); err != nil {
		return nil, err
	}
	return ins, nil
}

func validateWindow(req WindowRequest) error {
	if req.Weekday < time.Sunday || req.Weekday > time.Saturday {
		return ErrInvalidWindow
	}
	if req.StartMin < 0 || req.EndMin > 24*60 || req.StartMin >= req.EndMin {
		return ErrInvalidWindow
	}
	return nil
}

func (s *service) AddWindow(ctx context.Context, instructorID string, req WindowRequest) (*AvailabilityWindow, error) {
	if err := validateWindow(req); err != nil {
		return nil, err
	}
	if _, err := s.repo.GetByID(ctx, s.db, instructorID); err != nil {
		return nil, err
	}

	var w *AvailabilityWindow
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		overlap, err := s.repo.HasWindowOverlap(ctx, q, instructorID, req.Weekday, req.StartMin, req.EndMin, "")
		if err != nil {
			return err
		}
		if overlap {
			return ErrWindowOverlap
		}

		w = &AvailabilityWindow{
			InstructorID: instructorID,
			Weekday:      req.Weekday,
			StartMin:     req.StartMin,
			EndMin:       req.EndMin,
		}
		return s.repo.CreateWindow(ctx, q, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *service) UpdateWindow(ctx context.Context, windowID string, req WindowRequest) (*AvailabilityWindow, error) {
	if err := validateWindow(req); err != nil {
		return nil, err
	}

	var w *AvailabilityWindow
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		var err error
		w, err = s.repo.GetWindow(ctx, q, windowID)
		if err != nil {
			return err
		}

		// The window being updated is excluded from its own check.
		overlap, err := s.repo.HasWindowOverlap(ctx, q, w.InstructorID, req.Weekday, req.StartMin, req.EndMin, w.ID)
		if err != nil {
			return err
		}
		if overlap {
			return ErrWindowOverlap
		}

		w.Weekday = req.Weekday
		w.StartMin = req.StartMin
		w.EndMin = req.EndMin
		return s.repo.UpdateWindow(ctx, q, w)
	})
	if err != nil {
		return nil, err
	}
	return w, nil
}

func (s *service) RemoveWindow(ctx context.Context, windowID string) error {
	return s.repo.DeleteWindow(ctx, s.db, windowID)
}

func (s *service) ListWindows(ctx context.Context, instructorID string) ([]*AvailabilityWindow, error) {
	if _, err := s.repo.GetByID(ctx, s.db, instructorID); err != nil {
		return nil, err
	}
	return s.repo.ListWindows(ctx, s.db, instructorID)
}

func (s *service) WindowCovering(ctx context.Context, q db.Querier, instructorID string, iv interval.Interval) (bool, error) {
	// A session crossing UTC midnight can never fit a single-day window.
	if iv.CrossesMidnight() {
		return false, nil
	}

	windows, err := s.repo.ListWindowsByWeekday(ctx, q, instructorID, iv.Weekday())
	if err != nil {
		return false, err
	}

	startMin := interval.MinuteOfDay(iv.Start)
	endMin := startMin + iv.Minutes()
	for _, w := range windows {
		if w.Contains(iv.Weekday(), startMin, endMin) {
			return true, nil
		}
	}
	return false, nil
}
