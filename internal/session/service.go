package session

import (
	"context"
	"fmt"
	"time"

	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
	"github.com/nekogravitycat/facility-booking-backend/internal/booking"
	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/instructor"
	"github.com/nekogravitycat/facility-booking-backend/internal/metrics"
	"github.com/nekogravitycat/facility-booking-backend/internal/occupancy"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
	"github.com/nekogravitycat/facility-booking-backend/internal/pricing"
	"github.com/nekogravitycat/facility-booking-backend/internal/user"
)

type CreateRequest struct {
	UserID       string
	InstructorID string
	CourtID      *string
	Start        time.Time
	End          time.Time
}

type UpdateRequest struct {
	CourtID    *string
	ClearCourt bool
	Start      *time.Time
	End        *time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*PersonalSession, error)
	GetByID(ctx context.Context, id string) (*PersonalSession, error)
	List(ctx context.Context, filter Filter) ([]PersonalSession, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*PersonalSession, error)
	Cancel(ctx context.Context, id string) error
	Complete(ctx context.Context, id string) error

	// CheckAvailability reports whether the instructor (and the court,
	// when given) could host a session on the interval. Nothing is
	// persisted or locked.
	CheckAvailability(ctx context.Context, instructorID string, courtID *string, start, end time.Time) (bool, error)

	// ConfirmPaid flips a pending session (and its linked booking) to
	// confirmed once the charge is fully paid. Runs inside the payment
	// transaction.
	ConfirmPaid(ctx context.Context, q db.Querier, id string) error
}

type service struct {
	db          db.DB
	repo        Repository
	detector    *occupancy.Detector
	instructors instructor.Service
	bookings    booking.Service
	users       user.Service
	billing     billing.Service
	clock       clock.Clock
}

func NewService(
	database db.DB,
	repo Repository,
	detector *occupancy.Detector,
	instructors instructor.Service,
	bookings booking.Service,
	users user.Service,
	billingSvc billing.Service,
	clk clock.Clock,
) Service {
	return &service{
		db:          database,
		repo:        repo,
		detector:    detector,
		instructors: instructors,
		bookings:    bookings,
		users:       users,
		billing:     billingSvc,
		clock:       clk,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*PersonalSession, error) {
	iv, err := interval.New(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if !iv.Start.After(s.clock.Now()) {
		return nil, ErrPastStart
	}

	var sess *PersonalSession
	err = s.db.WithinTx(ctx, func(q db.Querier) error {
		if err := s.users.EnsureActive(ctx, q, req.UserID); err != nil {
			return err
		}

		covered, err := s.instructors.WindowCovering(ctx, q, req.InstructorID, iv)
		if err != nil {
			return err
		}
		if !covered {
			return ErrOutsideWindow
		}

		conflict, err := s.detector.HasConflict(ctx, q, occupancy.KindInstructor, req.InstructorID, iv)
		if err != nil {
			return err
		}
		if conflict {
			return ErrScheduleConflict
		}

		ins, err := s.instructors.Get(ctx, q, req.InstructorID)
		if err != nil {
			return err
		}
		price := pricing.ForSession(ins.HourlyRate, iv)

		sess = &PersonalSession{
			UserID:       req.UserID,
			InstructorID: req.InstructorID,
			CourtID:      req.CourtID,
			Interval:     iv,
			Price:        price,
			Status:       StatusPending,
		}
		if err := s.repo.Create(ctx, q, sess); err != nil {
			return err
		}

		if req.CourtID != nil {
			if err := s.bookings.SyncLinked(ctx, q, sess.ID, req.UserID, req.CourtID, iv, false); err != nil {
				return err
			}
		}

		_, err = s.billing.OpenCharge(ctx, q, billing.OpenChargeInput{
			UserID:        req.UserID,
			ReferenceType: billing.RefPersonalSession,
			ReferenceID:   &sess.ID,
			Description:   fmt.Sprintf("Personal session: %s, %s", ins.Name, iv),
			Amount:        price,
			DueDate:       &iv.Start,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncReservation("personal_session")
	return sess, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*PersonalSession, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]PersonalSession, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.repo.List(ctx, s.db, filter)
}

// Update reschedules a pending session or changes its court. The
// linked booking follows: moved with the session, created when a court
// is added, removed when the court is cleared.
func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*PersonalSession, error) {
	var sess *PersonalSession
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		existing, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if existing.Status != StatusPending {
			return ErrInvalidState
		}

		start := existing.Interval.Start
		end := existing.Interval.End
		if req.Start != nil {
			start = *req.Start
		}
		if req.End != nil {
			end = *req.End
		}
		iv, err := interval.New(start, end)
		if err != nil {
			return err
		}
		if !iv.Start.After(s.clock.Now()) {
			return ErrPastStart
		}

		courtID := existing.CourtID
		if req.ClearCourt {
			courtID = nil
		} else if req.CourtID != nil {
			courtID = req.CourtID
		}

		covered, err := s.instructors.WindowCovering(ctx, q, existing.InstructorID, iv)
		if err != nil {
			return err
		}
		if !covered {
			return ErrOutsideWindow
		}

		conflict, err := s.detector.HasConflict(ctx, q, occupancy.KindInstructor, existing.InstructorID, iv,
			occupancy.Ref{Source: "personal_sessions", ID: existing.ID})
		if err != nil {
			return err
		}
		if conflict {
			return ErrScheduleConflict
		}

		ins, err := s.instructors.Get(ctx, q, existing.InstructorID)
		if err != nil {
			return err
		}
		existing.Interval = iv
		existing.CourtID = courtID
		existing.Price = pricing.ForSession(ins.HourlyRate, iv)
		if err := s.repo.Update(ctx, q, existing); err != nil {
			return err
		}

		if err := s.bookings.SyncLinked(ctx, q, existing.ID, existing.UserID, courtID, iv, false); err != nil {
			return err
		}

		if err := s.billing.ReviseOpenCharge(ctx, q, billing.RefPersonalSession, existing.ID, existing.Price,
			fmt.Sprintf("Personal session: %s, %s", ins.Name, iv)); err != nil {
			return err
		}
		sess = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Cancel cancels the session and cascades to its linked booking, even
// a confirmed one: the court hold exists only to serve the session.
func (s *service) Cancel(ctx context.Context, id string) error {
	return s.db.WithinTx(ctx, func(q db.Querier) error {
		sess, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if sess.Status != StatusPending && sess.Status != StatusConfirmed {
			return ErrInvalidState
		}

		sess.Status = StatusCancelled
		if err := s.repo.Update(ctx, q, sess); err != nil {
			return err
		}
		if err := s.bookings.CancelLinked(ctx, q, sess.ID); err != nil {
			return err
		}
		return s.billing.CancelByReference(ctx, q, billing.RefPersonalSession, sess.ID)
	})
}

// Complete marks a confirmed session as delivered.
func (s *service) Complete(ctx context.Context, id string) error {
	return s.db.WithinTx(ctx, func(q db.Querier) error {
		sess, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if sess.Status != StatusConfirmed {
			return ErrInvalidState
		}
		sess.Status = StatusCompleted
		return s.repo.Update(ctx, q, sess)
	})
}

func (s *service) CheckAvailability(ctx context.Context, instructorID string, courtID *string, start, end time.Time) (bool, error) {
	iv, err := interval.New(start, end)
	if err != nil {
		return false, err
	}

	covered, err := s.instructors.WindowCovering(ctx, s.db, instructorID, iv)
	if err != nil {
		return false, err
	}
	if !covered {
		return false, nil
	}

	conflict, err := s.detector.HasConflict(ctx, s.db, occupancy.KindInstructor, instructorID, iv)
	if err != nil {
		return false, err
	}
	if conflict {
		return false, nil
	}

	if courtID != nil {
		conflict, err = s.detector.HasConflict(ctx, s.db, occupancy.KindCourt, *courtID, iv)
		if err != nil {
			return false, err
		}
		if conflict {
			return false, nil
		}
	}
	return true, nil
}

func (s *service) ConfirmPaid(ctx context.Context, q db.Querier, id string) error {
	sess, err := s.repo.GetForUpdate(ctx, q, id)
	if err != nil {
		return err
	}
	if sess.Status != StatusPending {
		return ErrInvalidState
	}
	sess.Status = StatusConfirmed
	if err := s.repo.Update(ctx, q, sess); err != nil {
		return err
	}
	return s.bookings.ConfirmLinked(ctx, q, sess.ID)
}
