package session

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "session not found")
	ErrScheduleConflict = apperror.New(http.StatusConflict, "requested time overlaps an existing reservation")
	ErrInvalidState     = apperror.New(http.StatusConflict, "operation not allowed in current session state")
	ErrPastStart        = apperror.New(http.StatusUnprocessableEntity, "session must start in the future")
	ErrOutsideWindow    = apperror.New(http.StatusUnprocessableEntity, "requested time is outside the instructor's availability")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

// PersonalSession books an instructor for one student. CourtID is
// optional; when set, a linked CourtBooking occupies the court for the
// same interval and follows this session's lifecycle.
type PersonalSession struct {
	ID           string
	UserID       string
	InstructorID string
	CourtID      *string
	Interval     interval.Interval
	Price        decimal.Decimal
	Status       Status
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Filter struct {
	UserID       string
	InstructorID string
	Status       string
	From         *time.Time
	To           *time.Time
	Page         int
	PageSize     int
}
