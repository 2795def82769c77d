package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/nekogravitycat/facility-booking-backend/internal/class"
)

type CreateTemplateRequest struct {
	Title        string          `json:"title" binding:"required"`
	InstructorID string          `json:"instructor_id" binding:"required,uuid"`
	CourtID      string          `json:"court_id" binding:"required,uuid"`
	Weekday      int             `json:"weekday" binding:"min=0,max=6"`
	StartMin     int             `json:"start_min" binding:"min=0,max=1439"`
	DurationMin  int             `json:"duration_min" binding:"required,min=1"`
	Capacity     int             `json:"capacity" binding:"required,min=1"`
	UnitPrice    decimal.Decimal `json:"unit_price" binding:"required"`
}

type ExpandTemplateRequest struct {
	RangeStart time.Time `json:"range_start" binding:"required"`
	RangeEnd   time.Time `json:"range_end" binding:"required"`
}

type ListOccurrencesRequest struct {
	TemplateID string     `form:"template_id"`
	Status     string     `form:"status"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Page       int        `form:"page,default=1"`
	PageSize   int        `form:"page_size,default=20"`
}

type TemplateResponse struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	InstructorID string    `json:"instructor_id"`
	CourtID      string    `json:"court_id"`
	Weekday      int       `json:"weekday"`
	StartMin     int       `json:"start_min"`
	DurationMin  int       `json:"duration_min"`
	Capacity     int       `json:"capacity"`
	UnitPrice    string    `json:"unit_price"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

type OccurrenceResponse struct {
	ID             string    `json:"id"`
	TemplateID     string    `json:"template_id"`
	InstructorID   string    `json:"instructor_id"`
	CourtID        string    `json:"court_id"`
	Start          time.Time `json:"start"`
	End            time.Time `json:"end"`
	Capacity       int       `json:"capacity"`
	RemainingSlots int       `json:"remaining_slots"`
	UnitPrice      string    `json:"unit_price"`
	Status         string    `json:"status"`
}

type EnrollmentResponse struct {
	ID           string    `json:"id"`
	OccurrenceID string    `json:"occurrence_id"`
	UserID       string    `json:"user_id"`
	Price        string    `json:"price"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

type ExpandResponse struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

func NewTemplateResponse(t *class.Template) TemplateResponse {
	return TemplateResponse{
		ID:           t.ID,
		Title:        t.Title,
		InstructorID: t.InstructorID,
		CourtID:      t.CourtID,
		Weekday:      int(t.Weekday),
		StartMin:     t.StartMin,
		DurationMin:  t.DurationMin,
		Capacity:     t.Capacity,
		UnitPrice:    t.UnitPrice.StringFixed(2),
		Active:       t.Active,
		CreatedAt:    t.CreatedAt,
	}
}

func NewOccurrenceResponse(o *class.Occurrence) OccurrenceResponse {
	return OccurrenceResponse{
		ID:             o.ID,
		TemplateID:     o.TemplateID,
		InstructorID:   o.InstructorID,
		CourtID:        o.CourtID,
		Start:          o.Interval.Start,
		End:            o.Interval.End,
		Capacity:       o.Capacity,
		RemainingSlots: o.RemainingSlots,
		UnitPrice:      o.UnitPrice.StringFixed(2),
		Status:         string(o.Status),
	}
}

func NewEnrollmentResponse(e *class.Enrollment) EnrollmentResponse {
	return EnrollmentResponse{
		ID:           e.ID,
		OccurrenceID: e.OccurrenceID,
		UserID:       e.UserID,
		Price:        e.Price.StringFixed(2),
		Status:       string(e.Status),
		CreatedAt:    e.CreatedAt,
	}
}
