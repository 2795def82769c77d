package http

import (
	"time"

	"github.com/nekogravitycat/facility-booking-backend/internal/session"
)

type CreateSessionRequest struct {
	InstructorID string    `json:"instructor_id" binding:"required,uuid"`
	CourtID      *string   `json:"court_id" binding:"omitempty,uuid"`
	Start        time.Time `json:"start" binding:"required"`
	End          time.Time `json:"end" binding:"required"`
}

type UpdateSessionRequest struct {
	CourtID    *string    `json:"court_id" binding:"omitempty,uuid"`
	ClearCourt bool       `json:"clear_court"`
	Start      *time.Time `json:"start"`
	End        *time.Time `json:"end"`
}

type AvailabilityRequest struct {
	InstructorID string    `form:"instructor_id" binding:"required,uuid"`
	CourtID      *string   `form:"court_id" binding:"omitempty,uuid"`
	Start        time.Time `form:"start" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
	End          time.Time `form:"end" binding:"required" time_format:"2006-01-02T15:04:05Z07:00"`
}

type ListSessionsRequest struct {
	InstructorID string     `form:"instructor_id"`
	Status       string     `form:"status"`
	From         *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To           *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page         int        `form:"page,default=1"`
	PageSize     int        `form:"page_size,default=20"`
}

type SessionResponse struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	InstructorID string    `json:"instructor_id"`
	CourtID      *string   `json:"court_id,omitempty"`
	Start        time.Time `json:"start"`
	End          time.Time `json:"end"`
	Price        string    `json:"price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func NewSessionResponse(s *session.PersonalSession) SessionResponse {
	return SessionResponse{
		ID:           s.ID,
		UserID:       s.UserID,
		InstructorID: s.InstructorID,
		CourtID:      s.CourtID,
		Start:        s.Interval.Start,
		End:          s.Interval.End,
		Price:        s.Price.StringFixed(2),
		Status:       string(s.Status),
		CreatedAt:    s.CreatedAt,
	}
}
