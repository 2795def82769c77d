package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/instructor"
)

type InstructorResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HourlyRate string    `json:"hourly_rate"`
	IsActive   bool      `json:"is_active"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewInstructorResponse(ins *instructor.Instructor) InstructorResponse {
	return InstructorResponse{
		ID:         ins.ID,
		Name:       ins.Name,
		HourlyRate: ins.HourlyRate.StringFixed(2),
		IsActive:   ins.IsActive,
		CreatedAt:  ins.CreatedAt,
		UpdatedAt:  ins.UpdatedAt,
	}
}

// InstructorTag is the minimal instructor reference embedded in other
// responses.
type InstructorTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type WindowResponse struct {
	ID           string `json:"id"`
	InstructorID string `json:"instructor_id"`
	Weekday      int    `json:"weekday"`
	StartMin     int    `json:"start_min"`
	EndMin       int    `json:"end_min"`
}

func NewWindowResponse(w *instructor.AvailabilityWindow) WindowResponse {
	return WindowResponse{
		ID:           w.ID,
		InstructorID: w.InstructorID,
		Weekday:      int(w.Weekday),
		StartMin:     w.StartMin,
		EndMin:       w.EndMin,
	}
}

type CreateInstructorRequest struct {
	Name       string          `json:"name" binding:"required"`
	HourlyRate decimal.Decimal `json:"hourly_rate" binding:"required"`
}

type UpdateInstructorRequest struct {
	Name       *string          `json:"name"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
	IsActive   *bool            `json:"is_active"`
}

type WindowBody struct {
	Weekday  int `json:"weekday" binding:"min=0,max=6"`
	StartMin int `json:"start_min" binding:"min=0,max=1439"`
	EndMin   int `json:"end_min" binding:"required,min=1,max=1440"`
}

type ListInstructorsRequest struct {
	ActiveOnly bool `form:"active_only"`
	Page       int  `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize   int  `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}
