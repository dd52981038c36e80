package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/ecm-agenda-api/internal/handler"
	"github.com/noah-isme/ecm-agenda-api/internal/middleware"
	"github.com/noah-isme/ecm-agenda-api/internal/service"
	"github.com/noah-isme/ecm-agenda-api/pkg/config"
	"github.com/noah-isme/ecm-agenda-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/ecm-agenda-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/ecm-agenda-api/pkg/middleware/requestid"
)

type routeHandlers struct {
	system       *handler.SystemHandler
	metrics      *handler.MetricsHandler
	agenda       *handler.AgendaHandler
	availability *handler.AvailabilityHandler
	rooms        *handler.RoomsHandler
	bookings     *handler.BookingHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, metrics *service.MetricsService, h routeHandlers) *gin.Engine {
	if logr == nil {
		logr = zap.NewNop()
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics, "/metrics"))

	r.GET("/", h.system.Root)
	r.GET("/health", h.system.Health)
	r.GET("/ready", h.system.Ready)
	r.GET("/metrics", h.metrics.Prometheus)
	r.GET("/metrics/summary", h.metrics.Summary)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.APIKey(cfg.APIKey))
	api.GET("/agenda", h.agenda.Agenda)
	api.GET("/availability", h.availability.Availability)
	api.GET("/rooms", h.rooms.Rooms)
	api.POST("/bookings", h.bookings.Create)
	api.DELETE("/bookings/:room/:event_id", h.bookings.Cancel)

	return r
}
