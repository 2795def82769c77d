package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, identity gin.HandlerFunc) {
	group := g.Group("/courts")

	group.GET("", h.List)
	group.GET("/:id", h.Get)

	group.Use(identity)
	{
		group.POST("", h.Create)
		group.PATCH("/:id", h.Update)
	}
}
