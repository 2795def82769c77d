package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/nekogravitycat/facility-booking-backend/internal/api"
	"github.com/nekogravitycat/facility-booking-backend/internal/billing"
	"github.com/nekogravitycat/facility-booking-backend/internal/booking"
	"github.com/nekogravitycat/facility-booking-backend/internal/class"
	"github.com/nekogravitycat/facility-booking-backend/internal/court"
	"github.com/nekogravitycat/facility-booking-backend/internal/db"
	"github.com/nekogravitycat/facility-booking-backend/internal/instructor"
	"github.com/nekogravitycat/facility-booking-backend/internal/metrics"
	"github.com/nekogravitycat/facility-booking-backend/internal/notification"
	"github.com/nekogravitycat/facility-booking-backend/internal/occupancy"
	"github.com/nekogravitycat/facility-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/facility-booking-backend/internal/scheduler"
	"github.com/nekogravitycat/facility-booking-backend/internal/session"
	"github.com/nekogravitycat/facility-booking-backend/internal/user"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction     bool
	ProdOrigins      string
	DBPool           *pgxpool.Pool
	PaymentTTL       time.Duration
	PaymentSweepCron string
	WebhookSecret    string
	PublicBaseURL    string
	Logger           zerolog.Logger
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router    *gin.Engine
	Scheduler *scheduler.Scheduler
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) (*Container, error) {
	metrics.Register()

	database := db.New(cfg.DBPool)
	clk := clock.System
	notifier := notification.NewLogNotifier(cfg.Logger)

	// User Module
	userRepo := user.NewPgxRepository()
	userService := user.NewService(database, userRepo)

	// Court Module
	courtRepo := court.NewPgxRepository()
	courtService := court.NewService(database, courtRepo)

	// Instructor Module
	instructorRepo := instructor.NewPgxRepository()
	instructorService := instructor.NewService(database, instructorRepo)

	// Occupancy detection spans every table that can hold a court or an
	// instructor; each module registers the tables it owns.
	bookingRepo := booking.NewRepository()
	detector := occupancy.NewDetector()
	detector.RegisterGate(occupancy.KindCourt, courtRepo)
	detector.RegisterGate(occupancy.KindInstructor, instructorRepo)
	detector.RegisterSource(occupancy.KindCourt, booking.NewOccupancySource(bookingRepo))
	detector.RegisterSource(occupancy.KindCourt, session.CourtSource{})
	detector.RegisterSource(occupancy.KindCourt, class.CourtSource{})
	detector.RegisterSource(occupancy.KindInstructor, session.InstructorSource{})
	detector.RegisterSource(occupancy.KindInstructor, class.InstructorSource{})

	// Billing Module
	gateway := billing.NewSandboxGateway(cfg.WebhookSecret, cfg.PublicBaseURL)
	billingService := billing.NewService(
		database,
		billing.NewRepository(),
		notifier,
		clk,
		cfg.PaymentTTL,
		cfg.Logger,
		gateway,
	)

	// Booking Module
	bookingService := booking.NewService(database, bookingRepo, detector, courtService, userService, billingService, clk)

	// Session Module
	sessionRepo := session.NewRepository()
	sessionService := session.NewService(database, sessionRepo, detector, instructorService, bookingService, userService, billingService, clk)

	// Class Module
	classRepo := class.NewRepository()
	classService := class.NewService(database, classRepo, detector, userService, billingService, clk, cfg.Logger)

	// A paid charge flips its reservation to confirmed inside the same
	// transaction; each module registers the transition it owns.
	billingService.RegisterConfirmer(billing.RefCourtBooking, bookingService)
	billingService.RegisterConfirmer(billing.RefPersonalSession, sessionService)
	billingService.RegisterConfirmer(billing.RefEnrollment, classService)

	sched, err := scheduler.New(billingService, cfg.PaymentSweepCron, cfg.Logger)
	if err != nil {
		return nil, err
	}

	// Router
	router := api.NewRouter(api.Config{
		IsProduction:      cfg.IsProduction,
		ProdOrigins:       cfg.ProdOrigins,
		CourtService:      courtService,
		InstructorService: instructorService,
		BookingService:    bookingService,
		SessionService:    sessionService,
		ClassService:      classService,
		BillingService:    billingService,
	})

	return &Container{
		Router:    router,
		Scheduler: sched,
	}, nil
}
