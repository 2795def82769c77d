package user

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound = apperror.New(http.StatusNotFound, "user not found")
	ErrInactive = apperror.New(http.StatusUnprocessableEntity, "user is inactive")
)

// User is the member identity referenced by reservations and charges.
// Accounts are provisioned by the upstream identity system; this
// service only reads them.
type User struct {
	ID          string
	Email       string
	DisplayName *string
	IsActive    bool
	CreatedAt   time.Time
}
