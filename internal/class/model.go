package class

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/interval"
)

var (
	ErrTemplateNotFound   = apperror.New(http.StatusNotFound, "class template not found")
	ErrOccurrenceNotFound = apperror.New(http.StatusNotFound, "class occurrence not found")
	ErrEnrollmentNotFound = apperror.New(http.StatusNotFound, "enrollment not found")
	ErrInvalidTemplate    = apperror.New(http.StatusBadRequest, "invalid class template")
	ErrInvalidRange       = apperror.New(http.StatusBadRequest, "invalid expansion range")
	ErrCapacityExceeded   = apperror.New(http.StatusConflict, "class is full")
	ErrAlreadyEnrolled    = apperror.New(http.StatusConflict, "user is already enrolled in this occurrence")
	ErrInvalidState       = apperror.New(http.StatusConflict, "operation not allowed in current state")
	ErrOccurrencePast     = apperror.New(http.StatusUnprocessableEntity, "class occurrence has already started")
)

// Template is a static weekly recurrence rule: every Weekday at
// StartMin minutes past UTC midnight, for DurationMin minutes.
type Template struct {
	ID           string
	Title        string
	InstructorID string
	CourtID      string
	Weekday      time.Weekday
	StartMin     int
	DurationMin  int
	Capacity     int
	UnitPrice    decimal.Decimal
	Active       bool
	CreatedAt    time.Time
}

type OccurrenceStatus string

const (
	OccurrenceScheduled OccurrenceStatus = "scheduled"
	OccurrenceCancelled OccurrenceStatus = "cancelled"
	OccurrenceCompleted OccurrenceStatus = "completed"
)

// Occurrence is one dated instance of a template. Court, instructor,
// capacity and price are denormalized at expansion time so later
// template edits leave already-generated occurrences untouched.
type Occurrence struct {
	ID             string
	TemplateID     string
	InstructorID   string
	CourtID        string
	Interval       interval.Interval
	Capacity       int
	RemainingSlots int
	UnitPrice      decimal.Decimal
	Status         OccurrenceStatus
	CreatedAt      time.Time
}

type EnrollmentStatus string

const (
	EnrollmentConfirmed EnrollmentStatus = "confirmed"
	EnrollmentCancelled EnrollmentStatus = "cancelled"
)

// Enrollment reserves one slot in an occurrence. Unlike bookings and
// sessions it is confirmed at creation; payment approval only fires
// the notification hook.
type Enrollment struct {
	ID           string
	OccurrenceID string
	UserID       string
	Price        decimal.Decimal
	Status       EnrollmentStatus
	CreatedAt    time.Time
}

type OccurrenceFilter struct {
	TemplateID string
	Status     string
	From       *time.Time
	To         *time.Time
	Page       int
	PageSize   int
}
