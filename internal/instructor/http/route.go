package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, identity gin.HandlerFunc) {
	group := g.Group("/instructors")

	group.GET("", h.List)
	group.GET("/:id", h.Get)
	group.GET("/:id/windows", h.ListWindows)

	group.Use(identity)
	{
		group.POST("", h.Create)
		group.PATCH("/:id", h.Update)
		group.POST("/:id/windows", h.AddWindow)
		group.PUT("/:id/windows/:window_id", h.UpdateWindow)
		group.DELETE("/:id/windows/:window_id", h.RemoveWindow)
	}
}
