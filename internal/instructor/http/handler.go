package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/facility-booking-backend/internal/instructor"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/response"
)

type Handler struct {
	service instructor.Service
}

func NewHandler(service instructor.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateInstructorRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	ins, err := h.service.Create(c.Request.Context(), instructor.CreateRequest{
		Name:       body.Name,
		HourlyRate: body.HourlyRate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewInstructorResponse(ins))
}

func (h *Handler) Get(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	ins, err := h.service.GetByID(c.Request.Context(), params.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewInstructorResponse(ins))
}

func (h *Handler) List(c *gin.Context) {
	var query ListInstructorsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	instructors, total, err := h.service.List(c.Request.Context(), instructor.Filter{
		ActiveOnly: query.ActiveOnly,
		Page:       query.Page,
		PageSize:   query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]InstructorResponse, len(instructors))
	for i, ins := range instructors {
		items[i] = NewInstructorResponse(ins)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, query.Page, query.PageSize, total))
}

func (h *Handler) Update(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	var body UpdateInstructorRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	ins, err := h.service.Update(c.Request.Context(), params.ID, instructor.UpdateRequest{
		Name:       body.Name,
		HourlyRate: body.HourlyRate,
		IsActive:   body.IsActive,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewInstructorResponse(ins))
}

func (h *Handler) ListWindows(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	windows, err := h.service.ListWindows(c.Request.Context(), params.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]WindowResponse, len(windows))
	for i, w := range windows {
		items[i] = NewWindowResponse(w)
	}

	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handler) AddWindow(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	var body WindowBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	w, err := h.service.AddWindow(c.Request.Context(), params.ID, instructor.WindowRequest{
		Weekday:  time.Weekday(body.Weekday),
		StartMin: body.StartMin,
		EndMin:   body.EndMin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewWindowResponse(w))
}

func (h *Handler) UpdateWindow(c *gin.Context) {
	windowID := c.Param("window_id")

	var body WindowBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	w, err := h.service.UpdateWindow(c.Request.Context(), windowID, instructor.WindowRequest{
		Weekday:  time.Weekday(body.Weekday),
		StartMin: body.StartMin,
		EndMin:   body.EndMin,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewWindowResponse(w))
}

func (h *Handler) RemoveWindow(c *gin.Context) {
	windowID := c.Param("window_id")

	if err := h.service.RemoveWindow(c.Request.Context(), windowID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
