package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/facility-booking-backend/internal/auth"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/facility-booking-backend/internal/session"
)

type Handler struct {
	service session.Service
}

func NewHandler(service session.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Create(c *gin.Context) {
	var body CreateSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	userID, err := auth.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sess, err := h.service.Create(c.Request.Context(), session.CreateRequest{
		UserID:       userID,
		InstructorID: body.InstructorID,
		CourtID:      body.CourtID,
		Start:        body.Start,
		End:          body.End,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewSessionResponse(sess))
}

func (h *Handler) Get(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	sess, err := h.service.GetByID(c.Request.Context(), params.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSessionResponse(sess))
}

func (h *Handler) List(c *gin.Context) {
	var query ListSessionsRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	userID, err := auth.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	sessions, total, err := h.service.List(c.Request.Context(), session.Filter{
		UserID:       userID,
		InstructorID: query.InstructorID,
		Status:       query.Status,
		From:         query.From,
		To:           query.To,
		Page:         query.Page,
		PageSize:     query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SessionResponse, len(sessions))
	for i := range sessions {
		items[i] = NewSessionResponse(&sessions[i])
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, query.Page, query.PageSize, total))
}

func (h *Handler) Update(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	var body UpdateSessionRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	sess, err := h.service.Update(c.Request.Context(), params.ID, session.UpdateRequest{
		CourtID:    body.CourtID,
		ClearCourt: body.ClearCourt,
		Start:      body.Start,
		End:        body.End,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewSessionResponse(sess))
}

func (h *Handler) Cancel(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.Cancel(c.Request.Context(), params.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Complete(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.Complete(c.Request.Context(), params.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Availability(c *gin.Context) {
	var query AvailabilityRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters", "details": err.Error()})
		return
	}

	available, err := h.service.CheckAvailability(c.Request.Context(), query.InstructorID, query.CourtID, query.Start, query.End)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"available": available})
}
