package http

import (
	"time"

	"github.com/nekogravitycat/facility-booking-backend/internal/booking"
)

type CreateBookingRequest struct {
	CourtID string    `json:"court_id" binding:"required,uuid"`
	Start   time.Time `json:"start" binding:"required"`
	End     time.Time `json:"end" binding:"required"`
}

type UpdateBookingRequest struct {
	Start *time.Time `json:"start"`
	End   *time.Time `json:"end"`
}

type ListBookingsRequest struct {
	CourtID  string     `form:"court_id"`
	Status   string     `form:"status"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page     int        `form:"page,default=1"`
	PageSize int        `form:"page_size,default=20"`
}

type AvailabilityRequest struct {
	CourtID string    `form:"court_id" binding:"required,uuid"`
	Start   time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End     time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

type BookingResponse struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	CourtID         string    `json:"court_id"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	Price           string    `json:"price"`
	Status          string    `json:"status"`
	LinkedSessionID *string   `json:"linked_session_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func NewBookingResponse(b *booking.CourtBooking) BookingResponse {
	return BookingResponse{
		ID:              b.ID,
		UserID:          b.UserID,
		CourtID:         b.CourtID,
		Start:           b.Interval.Start,
		End:             b.Interval.End,
		Price:           b.Price.StringFixed(2),
		Status:          string(b.Status),
		LinkedSessionID: b.LinkedSessionID,
		CreatedAt:       b.CreatedAt,
	}
}
