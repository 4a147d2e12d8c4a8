package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"

	"github.com/transitwatch/verifier/config"
	"github.com/transitwatch/verifier/internal/logging"
	"github.com/transitwatch/verifier/internal/metrics"
	"github.com/transitwatch/verifier/internal/service"
)

type Server struct {
	cfg               config.VerifierConfig
	reportService     service.Report
	moderationService service.Moderation
	authService       *service.AuthService
	metricsRegistry   *metrics.Registry
	logger            *logrus.Logger
}

// NewServer returns a new server.
func NewServer(
	cfg config.VerifierConfig,
	reportService service.Report,
	moderationService service.Moderation,
	authService *service.AuthService,
	registry *metrics.Registry,
) *Server {
	return &Server{
		cfg:               cfg,
		reportService:     reportService,
		moderationService: moderationService,
		authService:       authService,
		metricsRegistry:   registry,
		logger:            logrus.WithField("service", "verifier-server").Logger,
	}
}

func (s *Server) StartServer() error {
	e := echo.New()
	e.Use(logging.LoggerMiddleware(s.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("2M"))
	e.Use(middleware.CORS())
	limiterStore := middleware.NewRateLimiterMemoryStoreWithConfig(
		middleware.RateLimiterMemoryStoreConfig{Rate: 5, Burst: 30, ExpiresIn: 5 * time.Minute},
	)
	e.Use(middleware.RateLimiter(limiterStore))

	e.Validator = &RequestValidator{Validator: validator.New()}

	e.GET("/ping", s.Ping)
	if s.metricsRegistry != nil {
		e.GET("/metrics", echo.WrapHandler(s.metricsRegistry.Handler()))
	}

	reportGroup := e.Group("/reports", s.AuthMiddleware)
	reportGroup.POST("", s.SubmitReport)
	reportGroup.GET("/can-submit", s.CanSubmit)
	reportGroup.GET("/pending", s.ListPending)

	moderationGroup := e.Group("/moderation", s.AuthMiddleware)
	moderationGroup.GET("/queue", s.ListModerationQueue)
	moderationGroup.POST("/:pendingId/approve", s.ApproveReport)
	moderationGroup.POST("/:pendingId/reject", s.RejectReport)
	moderationGroup.POST("/users/:userId/flag", s.FlagUser)
	moderationGroup.POST("/incidents/:incidentId/resolve", s.ResolveIncident)

	return e.Start(fmt.Sprintf(":%d", s.cfg.Server.Port))
}

func (s *Server) Ping(c echo.Context) error {
	return c.String(http.StatusOK, "Verifier server is running")
}
