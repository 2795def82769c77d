package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, identity gin.HandlerFunc) {
	group := g.Group("/sessions")

	group.GET("/availability", h.Availability)

	group.Use(identity)
	{
		group.POST("", h.Create)
		group.GET("", h.List)
		group.GET("/:id", h.Get)
		group.PATCH("/:id", h.Update)
		group.POST("/:id/cancel", h.Cancel)
		group.POST("/:id/complete", h.Complete)
	}
}
