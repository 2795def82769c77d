package http

import (
	"github.com/gin-gonic/gin"
)

func RegisterRoutes(g *gin.RouterGroup, h *Handler, identity gin.HandlerFunc) {
	templates := g.Group("/classes/templates")
	templates.GET("", h.ListTemplates)
	templates.GET("/:id", h.GetTemplate)
	templates.Use(identity)
	{
		templates.POST("", h.CreateTemplate)
		templates.POST("/:id/expand", h.ExpandTemplate)
		templates.POST("/:id/deactivate", h.DeactivateTemplate)
	}

	occurrences := g.Group("/classes/occurrences")
	occurrences.GET("", h.ListOccurrences)
	occurrences.GET("/:id", h.GetOccurrence)
	occurrences.Use(identity)
	{
		occurrences.POST("/:id/enroll", h.Enroll)
		occurrences.POST("/:id/cancel", h.CancelOccurrence)
		occurrences.POST("/:id/complete", h.CompleteOccurrence)
	}

	enrollments := g.Group("/classes/enrollments", identity)
	{
		enrollments.GET("", h.ListEnrollments)
		enrollments.POST("/:id/cancel", h.CancelEnrollment)
	}
}
