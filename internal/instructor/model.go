package instructor

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound       = apperror.New(http.StatusNotFound, "instructor not found")
	ErrUnavailable    = apperror.New(http.StatusUnprocessableEntity, "instructor is not available for booking")
	ErrEmptyName      = apperror.New(http.StatusBadRequest, "name cannot be empty")
	ErrInvalidRate    = apperror.New(http.StatusBadRequest, "hourly rate must be positive")
	ErrWindowNotFound = apperror.New(http.StatusNotFound, "availability window not found")
	ErrInvalidWindow  = apperror.New(http.StatusBadRequest, "window start must be before window end")
	ErrWindowOverlap  = apperror.New(http.StatusConflict, "availability window overlaps an existing window")
)

// Instructor gives personal training sessions. Like courts, instructors
// are status-flagged rather than deleted.
type Instructor struct {
	ID         string
	Name       string
	HourlyRate decimal.Decimal
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// AvailabilityWindow is one weekly recurring span during which the
// instructor accepts sessions. Times are minutes past UTC midnight;
// windows of one instructor never overlap within a weekday.
type AvailabilityWindow struct {
	ID           string
	InstructorID string
	Weekday      time.Weekday
	StartMin     int
	EndMin       int
}

// Contains reports whether the minute span [startMin, endMin) fits
// entirely inside the window.
func (w AvailabilityWindow) Contains(weekday time.Weekday, startMin, endMin int) bool {
	return w.Weekday == weekday && w.StartMin <= startMin && endMin <= w.EndMin
}

// Filter defines parameters for listing instructors.
type Filter struct {
	ActiveOnly bool
	Page       int
	PageSize   int
}
