package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
	"github.com/nekogravitycat/facility-booking-backend/internal/court"
	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/metrics"
	"github.com/nekogravitycat/facility-booking-backend/internal/occupancy"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
	"github.com/nekogravitycat/facility-booking-backend/internal/pricing"
	"github.com/nekogravitycat/facility-booking-backend/internal/user"
)

type CreateRequest struct {
	UserID  string
	CourtID string
	Start   time.Time
	End     time.Time
}

type UpdateRequest struct {
	Start *time.Time
	End   *time.Time
}

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*CourtBooking, error)
	GetByID(ctx context.Context, id string) (*CourtBooking, error)
	List(ctx context.Context, filter Filter) ([]CourtBooking, int, error)
	Update(ctx context.Context, id string, req UpdateRequest) (*CourtBooking, error)
	Cancel(ctx context.Context, id string) error
	CheckAvailability(ctx context.Context, courtID string, start, end time.Time) (bool, error)

	// ConfirmPaid flips a pending booking to confirmed once its charge
	// is fully paid. Runs inside the payment transaction.
	ConfirmPaid(ctx context.Context, q db.Querier, id string) error

	// Linked-booking operations are driven by the personal session that
	// owns the booking and run inside the session's transaction.
	SyncLinked(ctx context.Context, q db.Querier, sessionID, userID string, courtID *string, iv interval.Interval, confirmed bool) error
	ConfirmLinked(ctx context.Context, q db.Querier, sessionID string) error
	CancelLinked(ctx context.Context, q db.Querier, sessionID string) error
}

type service struct {
	db       db.DB
	repo     Repository
	detector *occupancy.Detector
	courts   court.Service
	users    user.Service
	billing  billing.Service
	clock    clock.Clock
}

func NewService(
	database db.DB,
	repo Repository,
	detector *occupancy.Detector,
	courts court.Service,
	users user.Service,
	billingSvc billing.Service,
	clk clock.Clock,
) Service {
	return &service{
		db:       database,
		repo:     repo,
		detector: detector,
		courts:   courts,
		users:    users,
		billing:  billingSvc,
		clock:    clk,
	}
}

func (s *service) Create(ctx context.Context, req CreateRequest) (*CourtBooking, error) {
	iv, err := interval.New(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	if !iv.Start.After(s.clock.Now()) {
		return nil, ErrPastStart
	}

	var booking *CourtBooking
	err = s.db.WithinTx(ctx, func(q db.Querier) error {
		if err := s.users.EnsureActive(ctx, q, req.UserID); err != nil {
			return err
		}

		conflict, err := s.detector.HasConflict(ctx, q, occupancy.KindCourt, req.CourtID, iv)
		if err != nil {
			return err
		}
		if conflict {
			return ErrScheduleConflict
		}

		crt, err := s.courts.Get(ctx, q, req.CourtID)
		if err != nil {
			return err
		}
		price := pricing.ForCourt(crt.HourlyRate, iv)

		booking = &CourtBooking{
			UserID:   req.UserID,
			CourtID:  req.CourtID,
			Interval: iv,
			Price:    price,
			Status:   StatusPending,
		}
		if err := s.repo.Create(ctx, q, booking); err != nil {
			return err
		}

		_, err = s.billing.OpenCharge(ctx, q, billing.OpenChargeInput{
			UserID:        req.UserID,
			ReferenceType: billing.RefCourtBooking,
			ReferenceID:   &booking.ID,
			Description:   fmt.Sprintf("Court booking: %s, %s", crt.Name, iv),
			Amount:        price,
			DueDate:       &iv.Start,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.IncReservation("court_booking")
	return booking, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*CourtBooking, error) {
	return s.repo.GetByID(ctx, s.db, id)
}

func (s *service) List(ctx context.Context, filter Filter) ([]CourtBooking, int, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	return s.repo.List(ctx, s.db, filter)
}

// Update reschedules a pending booking. Confirmed bookings carry paid
// money and must be cancelled and rebooked instead.
func (s *service) Update(ctx context.Context, id string, req UpdateRequest) (*CourtBooking, error) {
	var booking *CourtBooking
	err := s.db.WithinTx(ctx, func(q db.Querier) error {
		b, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if b.Linked() {
			return ErrLinkedBooking
		}
		if b.Status != StatusPending {
			return ErrInvalidState
		}

		start := b.Interval.Start
		end := b.Interval.End
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

		conflict, err := s.detector.HasConflict(ctx, q, occupancy.KindCourt, b.CourtID, iv,
			occupancy.Ref{Source: "court_bookings", ID: b.ID})
		if err != nil {
			return err
		}
		if conflict {
			return ErrScheduleConflict
		}

		crt, err := s.courts.Get(ctx, q, b.CourtID)
		if err != nil {
			return err
		}
		b.Interval = iv
		b.Price = pricing.ForCourt(crt.HourlyRate, iv)
		if err := s.repo.Update(ctx, q, b); err != nil {
			return err
		}

		if err := s.billing.ReviseOpenCharge(ctx, q, billing.RefCourtBooking, b.ID, b.Price,
			fmt.Sprintf("Court booking: %s, %s", crt.Name, iv)); err != nil {
			return err
		}
		booking = b
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// Cancel is terminal and status-based: the row stays for billing
// history. The booking's pending charge, if any, is voided with it.
func (s *service) Cancel(ctx context.Context, id string) error {
	return s.db.WithinTx(ctx, func(q db.Querier) error {
		b, err := s.repo.GetForUpdate(ctx, q, id)
		if err != nil {
			return err
		}
		if b.Linked() {
			return ErrLinkedBooking
		}
		if b.Status == StatusCancelled {
			return ErrInvalidState
		}

		b.Status = StatusCancelled
		if err := s.repo.Update(ctx, q, b); err != nil {
			return err
		}
		return s.billing.CancelByReference(ctx, q, billing.RefCourtBooking, b.ID)
	})
}

func (s *service) CheckAvailability(ctx context.Context, courtID string, start, end time.Time) (bool, error) {
	iv, err := interval.New(start, end)
	if err != nil {
		return false, err
	}
	conflict, err := s.detector.HasConflict(ctx, s.db, occupancy.KindCourt, courtID, iv)
	if err != nil {
		return false, err
	}
	return !conflict, nil
}

func (s *service) ConfirmPaid(ctx context.Context, q db.Querier, id string) error {
	b, err := s.repo.GetForUpdate(ctx, q, id)
	if err != nil {
		return err
	}
	if b.Status != StatusPending {
		return ErrInvalidState
	}
	b.Status = StatusConfirmed
	return s.repo.Update(ctx, q, b)
}

// SyncLinked reconciles the cascade booking of a personal session with
// the session's current court and interval: created when a court is
// set, moved when it changes, removed when the court is cleared. The
// session has already held its own conflict checks; the court check
// here excludes both the session row and the linked booking row.
func (s *service) SyncLinked(ctx context.Context, q db.Querier, sessionID, userID string, courtID *string, iv interval.Interval, confirmed bool) error {
	existing, err := s.repo.GetByLinkedSession(ctx, q, sessionID)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}

	if courtID == nil {
		if existing == nil {
			return nil
		}
		// Linked bookings never carry their own charge, so the row can
		// go away outright.
		return s.repo.Delete(ctx, q, existing.ID)
	}

	excludes := []occupancy.Ref{{Source: "personal_sessions", ID: sessionID}}
	if existing != nil {
		excludes = append(excludes, occupancy.Ref{Source: "court_bookings", ID: existing.ID})
	}
	conflict, err := s.detector.HasConflict(ctx, q, occupancy.KindCourt, *courtID, iv, excludes...)
	if err != nil {
		return err
	}
	if conflict {
		return ErrScheduleConflict
	}

	crt, err := s.courts.Get(ctx, q, *courtID)
	if err != nil {
		return err
	}
	price := pricing.ForCourt(crt.HourlyRate, iv)

	status := StatusPending
	if confirmed {
		status = StatusConfirmed
	}

	if existing != nil {
		existing.CourtID = *courtID
		existing.Interval = iv
		existing.Price = price
		existing.Status = status
		return s.repo.Update(ctx, q, existing)
	}

	linked := &CourtBooking{
		UserID:          userID,
		CourtID:         *courtID,
		Interval:        iv,
		Price:           price,
		Status:          status,
		LinkedSessionID: &sessionID,
	}
	return s.repo.Create(ctx, q, linked)
}

func (s *service) ConfirmLinked(ctx context.Context, q db.Querier, sessionID string) error {
	b, err := s.repo.GetByLinkedSession(ctx, q, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if b.Status != StatusPending {
		return nil
	}
	b.Status = StatusConfirmed
	return s.repo.Update(ctx, q, b)
}

// CancelLinked cancels the cascade booking when the parent session is
// cancelled, whether or not the booking was already confirmed.
func (s *service) CancelLinked(ctx context.Context, q db.Querier, sessionID string) error {
	b, err := s.repo.GetByLinkedSession(ctx, q, sessionID)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	b.Status = StatusCancelled
	return s.repo.Update(ctx, q, b)
}
