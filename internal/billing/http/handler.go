package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nekogravitycat/facility-booking-backend/internal/auth"
	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/response"
)

type Handler struct {
	service billing.Service
}

func NewHandler(service billing.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ListCharges(c *gin.Context) {
	var query ListChargesRequest
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid query parameters"})
		return
	}

	userID, err := auth.GetUserID(c)
	if err != nil {
		response.Error(c, err)
		return
	}

	charges, total, err := h.service.ListCharges(c.Request.Context(), billing.ChargeFilter{
		UserID:        userID,
		Status:        query.Status,
		ReferenceType: query.ReferenceType,
		Page:          query.Page,
		PageSize:      query.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]ChargeResponse, len(charges))
	for i := range charges {
		items[i] = NewChargeResponse(&charges[i], nil)
	}

	c.JSON(http.StatusOK, response.NewPageResponse(items, query.Page, query.PageSize, total))
}

func (h *Handler) GetCharge(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	charge, installments, err := h.service.GetCharge(c.Request.Context(), params.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewChargeResponse(charge, installments))
}

func (h *Handler) StartPayment(c *gin.Context) {
	var body StartPaymentRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body", "details": err.Error()})
		return
	}

	payment, err := h.service.StartPayment(c.Request.Context(), billing.StartPaymentInput{
		InstallmentID: body.InstallmentID,
		Provider:      body.Provider,
		Method:        body.Method,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusCreated, NewPaymentResponse(payment))
}

func (h *Handler) GetPayment(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	payment, err := h.service.GetPayment(c.Request.Context(), params.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.JSON(http.StatusOK, NewPaymentResponse(payment))
}

func (h *Handler) CancelPayment(c *gin.Context) {
	var params request.ByIDRequest
	if err := c.ShouldBindUri(&params); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid UUID"})
		return
	}

	if err := h.service.CancelPayment(c.Request.Context(), params.ID); err != nil {
		response.Error(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Webhook receives provider callbacks. Providers are not
// authenticated users, so this endpoint sits outside the identity
// middleware; the gateway verifies each delivery's signature.
func (h *Handler) Webhook(c *gin.Context) {
	provider := c.Param("provider")
	if err := h.service.HandleWebhook(c.Request.Context(), provider, c.Request); err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
