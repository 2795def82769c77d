package class

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/metrics"
	"github.com/nekogravitycat/facility-booking-backend/internal/occupancy"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/facility-booking-backend/internal/pricing"
	"github.com/nekogravitycat/facility-booking-backend/internal/user"
)

type CreateTemplateRequest struct {
	Title        string
	InstructorID string
	CourtID      string
	Weekday      time.Weekday
	StartMin     int
	DurationMin  int
	Capacity     int
	UnitPrice    decimal.Decimal
}

// ExpandResult reports one expansion run: occurrences created and
// candidates skipped because a resource was already occupied.
type ExpandResult struct {
	Created int
	Skipped int
}

type Service interface {
	CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*Template, error)
	GetTemplate(ctx context.Context, id string) (*Template, error)
	ListTemplates(ctx context.Context, activeOnly bool) ([]Template, error)
	DeactivateTemplate(ctx context.Context, id string) error

	// ExpandTemplate generates dated occurrences for the template over
	// [rangeStart, rangeEnd]. The whole run is one transaction: colliding
	// candidates are skipped, any other failure rolls back everything.
	ExpandTemplate(ctx context.Context, templateID string, rangeStart, rangeEnd time.Time) (ExpandResult, error)

	GetOccurrence(ctx context.Context, id string) (*Occurrence, error)
	ListOccurrences(ctx context.Context, filter OccurrenceFilter) ([]Occurrence, int, error)
	CancelOccurrence(ctx context.Context, id string) error
	CompleteOccurrence(ctx context.Context, id string) error

	Enroll(ctx context.Context, occurrenceID, userID string) (*Enrollment, error)
	GetEnrollment(ctx context.Context, id string) (*Enrollment, error)
	ListUserEnrollments(ctx context.Context, userID string) ([]Enrollment, error)
	CancelEnrollment(ctx context.Context, id string) error

	// ConfirmPaid runs when an enrollment's charge is fully paid.
	// Enrollments are confirmed at creation, so this only validates the
	// reference still stands.
	ConfirmPaid(ctx context.Context, q db.Querier, id string) error
}

type service struct {
	db       db.DB
	repo     Repository
	detector *occupancy.Detector
	users    user.Service
	billing  billing.Service
	clock    clock.Clock
	logger   zerolog.Logger
}

func NewService(
	database db.DB,
	repo Repository,
	detector *occupancy.Detector,
	users user.Service,
	billingSvc billing.Service,
	clk clock.Clock,
	logger zerolog.Logger,
) Service {
	return &service{
		db:       database,
		repo:     repo,
		detector: detector,
		users:    users,
		billing:  billingSvc,
		clock:    clk,
		logger:   logger.With().Str("component", "class").Logger(),
	}
}

func (s *service) CreateTemplate(ctx context.Context, req CreateTemplateRequest) (*Template, error) {
	if req.Weekday < time.Sunday || req.Weekday > time.Saturday {
		return nil, ErrInvalidTemplate
	}
	if req.StartMin < 0 || req.StartMin >= 24*60 || req.DurationMin <= 0 || req.StartMin+req.DurationMin > 24*60 {
		return nil, ErrInvalidTemplate
	}
	if req.Capacity <= 0 || !req.UnitPrice.IsPositive() {
		return nil, ErrInvalidTemplate
	}

	t := &Template{
		Title:        req.Title,
		InstructorID: req.InstructorID,
		CourtID:      req.CourtID,
		Weekday:      req.Weekday,
		StartMin:     req.StartMin,
		DurationMin:  req.DurationMin,
		Capacity:     req.Capacity,
		UnitPrice:    req.UnitPrice.Round(2),
		Active:       true,
	}
	if err := s.repo.CreateTemplate(ctx, s.db, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *service) GetTemplate(ctx context.Context, id string) (*Template, error) {
	return s.repo.GetTemplate(ctx, s.db, id)
}

func (s *service) ListTemplates(ctx context.Context, activeOnly bool) ([]Template, error) {
	return s.repo.ListTemplates(ctx, s.db, activeOnly)
}

func (s *service) DeactivateTemplate(ctx context.Context, id string) error {
	return s.repo.SetTemplateActive(ctx, s.db, id, false)
}

func (s *service) ExpandTemplate(ctx context.Context, templateID string, rangeStart, rangeEnd time.Time) (ExpandResult, error) {
	if rangeEnd.Before(rangeStart) {
		return ExpandResult{}, ErrInvalidRange
	}

	var result ExpandResult
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		t, err := s.repo.GetTemplate(ctx, q, templateID)
		if err != nil {
			return err
		}
		if !t.Active {
			return ErrInvalidState
		}

		for _, iv := range candidateIntervals(t, rangeStart, rangeEnd) {
			courtBusy, err := s.detector.HasConflict(ctx, q, occupancy.KindCourt, t.CourtID, iv)
			if err != nil {
				return err
			}
			instructorBusy := false
			if !courtBusy {
				instructorBusy, err = s.detector.HasConflict(ctx, q, occupancy.KindInstructor, t.InstructorID, iv)
				if err != nil {
					return err
				}
			}
			if courtBusy || instructorBusy {
				result.Skipped++
				continue
			}

			o := &Occurrence{
				TemplateID:     t.ID,
				InstructorID:   t.InstructorID,
				CourtID:        t.CourtID,
				Interval:       iv,
				Capacity:       t.Capacity,
				RemainingSlots: t.Capacity,
				UnitPrice:      t.UnitPrice,
				Status:         OccurrenceScheduled,
			}
			if err := s.repo.CreateOccurrence(ctx, q, o); err != nil {
				return err
			}
			result.Created++
		}
		return nil
	})
	if err != nil {
		return ExpandResult{}, err
	}

	s.logger.Info().
		Str("template_id", templateID).
		Int("created", result.Created).
		Int("skipped", result.Skipped).
		Msg("template expanded")
	return result, nil
}

func (s *service) GetOccurrence(ctx context.Context, id string) (*Occurrence, error) {
	return s.repo.GetOccurrence(ctx, s.db, id)
}

func (s *service) ListOccurrences(ctx context.Context, filter OccurrenceFilter) ([]Occurrence, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.repo.ListOccurrences(ctx, s.db, filter)
}

// CancelOccurrence cancels the occurrence and cascades to every
// confirmed enrollment, voiding their pending charges.
func (s *service) CancelOccurrence(ctx context.Context, id string) error {
	return s.db.WithinTx(ctx, func(q db.Querier) error {
		o, err := s.repo.GetOccurrenceForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if o.Status != OccurrenceScheduled {
			return ErrInvalidState
		}

		o.Status = OccurrenceCancelled
		if err := s.repo.UpdateOccurrence(ctx, q, o); err != nil {
			return err
		}

		enrollments, err := s.repo.ListEnrollmentsByOccurrence(ctx, q, o.ID)
		if err != nil {
			return err
		}
		for i := range enrollments {
			e := &enrollments[i]
			if e.Status != EnrollmentConfirmed {
				continue
			}
			e.Status = EnrollmentCancelled
			if err := s.repo.UpdateEnrollment(ctx, q, e); err != nil {
				return err
			}
			if err := s.billing.CancelByReference(ctx, q, billing.RefEnrollment, e.ID); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *service) CompleteOccurrence(ctx context.Context, id string) error {
	return s.db.WithinTx(ctx, func(q db.Querier) error {
		o, err := s.repo.GetOccurrenceForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if o.Status != OccurrenceScheduled {
			return ErrInvalidState
		}
		o.Status = OccurrenceCompleted
		return s.repo.UpdateOccurrence(ctx, q, o)
	})
}

// Enroll takes one slot in an occurrence. The occurrence row lock
// serializes concurrent enrollments so capacity can never go negative.
func (s *service) Enroll(ctx context.Context, occurrenceID, userID string) (*Enrollment, error) {
	var enrollment *Enrollment
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		if err := s.users.EnsureActive(ctx, q, userID); err != nil {
			return err
		}

		o, err := s.repo.GetOccurrenceForUpdate(ctx, q, occurrenceID)
		if err != nil {
			return err
		}
		if o.Status != OccurrenceScheduled {
			return ErrInvalidState
		}
		if !o.Interval.Start.After(s.clock.Now()) {
			return ErrOccurrencePast
		}
		if o.RemainingSlots <= 0 {
			return ErrCapacityExceeded
		}

		enrolled, err := s.repo.HasActiveEnrollment(ctx, q, o.ID, userID)
		if err != nil {
			return err
		}
		if enrolled {
			return ErrAlreadyEnrolled
		}

		price := pricing.ForClass(o.UnitPrice)
		enrollment = &Enrollment{
			OccurrenceID: o.ID,
			UserID:       userID,
			Price:        price,
			Status:       EnrollmentConfirmed,
		}
		if err := s.repo.CreateEnrollment(ctx, q, enrollment); err != nil {
			return err
		}

		o.RemainingSlots--
		if err := s.repo.UpdateOccurrence(ctx, q, o); err != nil {
			return err
		}

		_, err = s.billing.OpenCharge(ctx, q, billing.OpenChargeInput{
			UserID:        userID,
			ReferenceType: billing.RefEnrollment,
			ReferenceID:   &enrollment.ID,
			Description:   fmt.Sprintf("Class enrollment: %s", o.Interval),
			Amount:        price,
			DueDate:       &o.Interval.Start,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncReservation("enrollment")
	return enrollment, nil
}

func (s *service) GetEnrollment(ctx context.Context, id string) (*Enrollment, error) {
	return s.repo.GetEnrollment(ctx, s.db, id)
}

func (s *service) ListUserEnrollments(ctx context.Context, userID string) ([]Enrollment, error) {
	return s.repo.ListEnrollmentsByUser(ctx, s.db, userID)
}

// CancelEnrollment frees the slot and voids the pending charge.
func (s *service) CancelEnrollment(ctx context.Context, id string) error {
	return s.db.WithinTx(ctx, func(q db.Querier) error {
		e, err := s.repo.GetEnrollmentForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if e.Status != EnrollmentConfirmed {
			return ErrInvalidState
		}

		e.Status = EnrollmentCancelled
		if err := s.repo.UpdateEnrollment(ctx, q, e); err != nil {
			return err
		}

		o, err := s.repo.GetOccurrenceForUpdate(ctx, q, e.OccurrenceID)
		if err != nil {
			return err
		}
		if o.RemainingSlots < o.Capacity {
			o.RemainingSlots++
			if err := s.repo.UpdateOccurrence(ctx, q, o); err != nil {
				return err
			}
		}
		return s.billing.CancelByReference(ctx, q, billing.RefEnrollment, e.ID)
	})
}

func (s *service) ConfirmPaid(ctx context.Context, q db.Querier, id string) error {
	e, err := s.repo.GetEnrollment(ctx, q, id)
	if err != nil {
		return err
	}
	if e.Status != EnrollmentConfirmed {
		return ErrInvalidState
	}
	return nil
}
