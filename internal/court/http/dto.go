package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/court"
)

type CourtResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	HourlyRate string    `json:"hourly_rate"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func NewCourtResponse(c *court.Court) CourtResponse {
	return CourtResponse{
		ID:         c.ID,
		Name:       c.Name,
		HourlyRate: c.HourlyRate.StringFixed(2),
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
}

// CourtTag is the minimal court reference embedded in other responses.
type CourtTag struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type CreateCourtRequest struct {
	Name       string          `json:"name" binding:"required"`
	HourlyRate decimal.Decimal `json:"hourly_rate" binding:"required"`
}

type UpdateCourtRequest struct {
	Name       *string          `json:"name"`
	HourlyRate *decimal.Decimal `json:"hourly_rate"`
	Status     *string          `json:"status" binding:"omitempty,oneof=active maintenance inactive"`
}

type ListCourtsRequest struct {
	Status   string `form:"status" binding:"omitempty,oneof=active maintenance inactive"`
	Page     int    `form:"page,default=1" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size,default=20" binding:"omitempty,min=1,max=100"`
}
