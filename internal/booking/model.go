package booking

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "booking not found")
	ErrScheduleConflict = apperror.New(http.StatusConflict, "requested time overlaps an existing reservation")
	ErrInvalidState     = apperror.New(http.StatusConflict, "operation not allowed in current booking state")
	ErrPastStart        = apperror.New(http.StatusUnprocessableEntity, "booking must start in the future")
	ErrLinkedBooking    = apperror.New(http.StatusConflict, "booking is managed by its personal session")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// CourtBooking reserves a court for a user over one interval. When
// LinkedSessionID is set the booking is a cascade artifact of a
// personal session and cannot be edited or cancelled on its own.
type CourtBooking struct {
	ID              string
	UserID          string
	CourtID         string
	Interval        interval.Interval
	Price           decimal.Decimal
	Status          Status
	LinkedSessionID *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Linked reports whether the booking is driven by a personal session.
func (b *CourtBooking) Linked() bool {
	return b.LinkedSessionID != nil
}

// Filter defines parameters for listing bookings.
type Filter struct {
	UserID   string
	CourtID  string
	Status   string
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}
