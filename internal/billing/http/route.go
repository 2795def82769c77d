package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, identity gin.HandlerFunc) {
	charges := g.Group("/charges", identity)
	{
		charges.GET("", h.ListCharges)
		charges.GET("/:id", h.GetCharge)
	}

	payments := g.Group("/payments", identity)
	{
		payments.POST("", h.StartPayment)
		payments.GET("/:id", h.GetPayment)
		payments.POST("/:id/cancel", h.CancelPayment)
	}

	g.POST("/webhooks/:provider", h.Webhook)
}
