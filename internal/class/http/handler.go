package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/facility-booking-backend/internal/auth"
	"github.com/nekogravitycat/facility-booking-backend/internal/class"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/response"
)

type Handler struct {
	service class.Service
}

func NewHandler(service class.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var body CreateTemplateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	t, err := h.service.CreateTemplate(c.Request.Context(), class.CreateTemplateRequest{
		Title:        body.Title,
		InstructorID: body.InstructorID,
		CourtID:      body.CourtID,
		Weekday:      time.Weekday(body.Weekday),
		StartMin:     body.StartMin,
		DurationMin:  body.DurationMin,
		Capacity:     body.Capacity,
		UnitPrice:    body.UnitPrice,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewTemplateResponse(t))
}

func (h *Handler) GetTemplate(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	t, err := h.service.GetTemplate(c.Request.Context(), params.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewTemplateResponse(t))
}

func (h *Handler) ListTemplates(c *gin.Context) {
	activeOnly := c.Query("active") == "true"

	templates, err := h.service.ListTemplates(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]TemplateResponse, len(templates))
	for i := range templates {
		items[i] = NewTemplateResponse(&templates[i])
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) DeactivateTemplate(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.DeactivateTemplate(c.Request.Context(), params.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ExpandTemplate(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	var body ExpandTemplateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	result, err := h.service.ExpandTemplate(c.Request.Context(), params.ID, body.RangeStart, body.RangeEnd)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, ExpandResponse{Created: result.Created, Skipped: result.Skipped})
}

func (h *Handler) GetOccurrence(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	o, err := h.service.GetOccurrence(c.Request.Context(), params.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewOccurrenceResponse(o))
}

func (h *Handler) ListOccurrences(c *gin.Context) {
	var query ListOccurrencesRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	occurrences, total, err := h.service.ListOccurrences(c.Request.Context(), class.OccurrenceFilter{
		TemplateID: query.TemplateID,
		Status:     query.Status,
		From:       query.From,
		To:         query.To,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]OccurrenceResponse, len(occurrences))
	for i := range occurrences {
		items[i] = NewOccurrenceResponse(&occurrences[i])
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, query.Page, query.PageSize, total))
}

func (h *Handler) CancelOccurrence(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.CancelOccurrence(c.Request.Context(), params.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) CompleteOccurrence(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.CompleteOccurrence(c.Request.Context(), params.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Enroll(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	userID, err := auth.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	enrollment, err := h.service.Enroll(c.Request.Context(), params.ID, userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewEnrollmentResponse(enrollment))
}

func (h *Handler) ListEnrollments(c *gin.Context) {
	userID, err := auth.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	enrollments, err := h.service.ListUserEnrollments(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]EnrollmentResponse, len(enrollments))
	for i := range enrollments {
		items[i] = NewEnrollmentResponse(&enrollments[i])
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) CancelEnrollment(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.CancelEnrollment(c.Request.Context(), params.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
