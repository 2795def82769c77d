package court

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound      = apperror.New(http.StatusNotFound, "court not found")
	ErrUnavailable   = apperror.New(http.StatusUnprocessableEntity, "court is not available for booking")
	ErrEmptyName     = apperror.New(http.StatusBadRequest, "name cannot be empty")
	ErrInvalidRate   = apperror.New(http.StatusBadRequest, "hourly rate must be positive")
	ErrInvalidStatus = apperror.New(http.StatusBadRequest, "invalid court status")
)

type Status string

const (
	StatusActive      Status = "active"
	StatusMaintenance Status = "maintenance"
	StatusInactive    Status = "inactive"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusActive, StatusMaintenance, StatusInactive:
		return true
	}
	return false
}

// Court is a bookable physical court. Courts are never deleted, only
// status-flagged, so historical bookings keep their reference.
type Court struct {
	ID         string
	Name       string
	HourlyRate decimal.Decimal
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Filter defines parameters for listing courts.
type Filter struct {
	Status   string
	Page     int
	PageSize int
}
