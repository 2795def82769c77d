package api

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nekogravitycat/facility-booking-backend/internal/auth"
	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
	billingHttp "github.com/nekogravitycat/facility-booking-backend/internal/billing/http"
	"github.com/nekogravitycat/facility-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/facility-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/facility-booking-backend/internal/class"
	classHttp "github.com/nekogravitycat/facility-booking-backend/internal/class/http"
	"github.com/nekogravitycat/facility-booking-backend/internal/court"
	courtHttp "github.com/nekogravitycat/facility-booking-backend/internal/court/http"
	"github.com/nekogravitycat/facility-booking-backend/internal/instructor"
	instructorHttp "github.com/nekogravitycat/facility-booking-backend/internal/instructor/http"
	"github.com/nekogravitycat/facility-booking-backend/internal/session"
	sessionHttp "github.com/nekogravitycat/facility-booking-backend/internal/session/http"
)

// Config holds the settings and module services the router needs.
type Config struct {
	IsProduction bool
	// ProdOrigins is a comma-separated allowlist of CORS origins used
	// when running in production.
	ProdOrigins string

	CourtService      court.Service
	InstructorService instructor.Service
	BookingService    booking.Service
	SessionService    session.Service
	ClassService      class.Service
	BillingService    billing.Service
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Identity) and
// registering routes for each module.
func NewRouter(cfg Config) *gin.Engine {
	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information to the console.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(gin.Logger(), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	if cfg.IsProduction {
		corsConfig.AllowOrigins = splitOrigins(cfg.ProdOrigins)
	} else {
		corsConfig.AllowOrigins = []string{
			"http://localhost:8081", // Swagger
		}
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", "X-User-ID", "X-User-Email"}
	r.Use(cors.New(corsConfig))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// identityMiddleware: resolves the calling user from the trusted
	// gateway headers.
	identityMiddleware := auth.Identity()

	// Initialize HTTP Handlers for each module (injecting Service dependencies).
	courtHandler := courtHttp.NewHandler(cfg.CourtService)
	instructorHandler := instructorHttp.NewHandler(cfg.InstructorService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService)
	sessionHandler := sessionHttp.NewHandler(cfg.SessionService)
	classHandler := classHttp.NewHandler(cfg.ClassService)
	billingHandler := billingHttp.NewHandler(cfg.BillingService)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		courtHttp.RegisterRoutes(v1, courtHandler, identityMiddleware)
		instructorHttp.RegisterRoutes(v1, instructorHandler, identityMiddleware)
		bookingHttp.RegisterRoutes(v1, bookingHandler, identityMiddleware)
		sessionHttp.RegisterRoutes(v1, sessionHandler, identityMiddleware)
		classHttp.RegisterRoutes(v1, classHandler, identityMiddleware)
		billingHttp.RegisterRoutes(v1, billingHandler, identityMiddleware)
	}

	return r
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
