package handler

import (
	"petvet/internal/docstore"
	"petvet/internal/metrics"
	"petvet/internal/middleware"
	"petvet/internal/repository"
	"petvet/internal/service"
	"petvet/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RouterConfig carries everything NewRouter wires together
type RouterConfig struct {
	Store       docstore.Store
	JWT         *utils.JWTUtil
	AuthLimiter *middleware.RateLimiter
	Log         logrus.FieldLogger
	FrontendURL string
	Version     string
}

// NewRouter builds repositories, services and handlers on top of cfg.Store and
// registers every route.
func NewRouter(cfg RouterConfig) *gin.Engine {
	// --- Initialize Repositories ---
	serviceRepo := repository.NewServiceRepository(cfg.Store)
	userRepo := repository.NewUserRepository(cfg.Store)
	appointmentRepo := repository.NewAppointmentRepository(cfg.Store)

	// --- Initialize Services ---
	catalogService := service.NewCatalogService(serviceRepo)
	authService := service.NewAuthService(userRepo, cfg.JWT)
	appointmentService := service.NewAppointmentService(appointmentRepo, serviceRepo)

	// --- Initialize Handlers ---
	authHandler := NewAuthHandler(authService)
	serviceHandler := NewServiceHandler(catalogService)
	appointmentHandler := NewAppointmentHandler(appointmentService)
	systemHandler := NewSystemHandler(cfg.Store, cfg.Version)

	// --- Setup Gin Router ---
	router := gin.New()
	router.Use(
		gin.Recovery(),
		middleware.RequestLogger(cfg.Log),
		metrics.Middleware(),
		middleware.CORS(cfg.FrontendURL),
	)

	jwtAuthMW := middleware.JWTAuthMiddleware(cfg.JWT, cfg.Log)

	// --- Register Routes ---
	systemHandler.RegisterSystemRoutes(router)
	apiGroup := router.Group("/api")
	authHandler.RegisterAuthRoutes(apiGroup, cfg.AuthLimiter.Middleware(cfg.Log))
	serviceHandler.RegisterServiceRoutes(apiGroup, jwtAuthMW)
	appointmentHandler.RegisterAppointmentRoutes(apiGroup, jwtAuthMW)

	return router
}
