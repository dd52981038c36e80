package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	_ "github.com/noah-isme/ecm-agenda-api/api/swagger"
	"github.com/noah-isme/ecm-agenda-api/internal/handler"
	"github.com/noah-isme/ecm-agenda-api/internal/repository"
	"github.com/noah-isme/ecm-agenda-api/internal/service"
	"github.com/noah-isme/ecm-agenda-api/pkg/cache"
	"github.com/noah-isme/ecm-agenda-api/pkg/config"
	"github.com/noah-isme/ecm-agenda-api/pkg/jobs"
	"github.com/noah-isme/ecm-agenda-api/pkg/logger"
)

// @title ECM Agenda API
// @version 1.0.0
// @description Room agenda, lesson availability and bookings over the academy calendars
// @BasePath /
// @schemes http
// @securityDefinitions.apikey ApiKey
// @in header
// @name X-API-Key

const cacheNamespace = "ecm"

type calendarBackend interface {
	service.CalendarProvider
	service.BookingWriter
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loc, err := time.LoadLocation(cfg.Calendar.Timezone)
	if err != nil {
		logr.Fatal("invalid calendar timezone", zap.String("timezone", cfg.Calendar.Timezone), zap.Error(err))
	}
	policy, err := service.LoadRoomPolicy(cfg.Availability.RoomPolicyFile, cfg.Calendar.RoomNames())
	if err != nil {
		logr.Fatal("failed to load room policy", zap.Error(err))
	}
	window, err := service.ParseWindow(cfg.Availability.WindowStart, cfg.Availability.WindowEnd)
	if err != nil {
		logr.Fatal("invalid availability window", zap.Error(err))
	}

	backend, err := newCalendarBackend(ctx, cfg, loc, logr)
	if err != nil {
		logr.Fatal("failed to init calendar provider", zap.String("provider", cfg.Calendar.Provider), zap.Error(err))
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, serving without cache", zap.Error(err))
	}
	cacheRepo := repository.NewCacheRepository(redisClient, cacheNamespace, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	normalizer := service.NewEventNormalizer(loc, service.DefaultVocabulary())
	engine := service.NewAvailabilityEngine(policy, normalizer, logr)
	provider := service.NewCachedCalendarProvider(backend, cacheRepo, metrics, cfg.Calendar.CacheTTL, logr)
	fetcher := service.NewEventFetcher(provider, normalizer, metrics, logr)

	queue := jobs.NewQueue("cache-invalidation", service.CacheInvalidationHandler(provider), jobs.QueueConfig{
		Workers:    cfg.Bookings.Workers,
		MaxRetries: cfg.Bookings.Retries,
		Logger:     logr,
	})
	queue.Start(ctx)
	defer queue.Stop()

	bookingHandler := handler.NewBookingHandler(nil)
	if cfg.Bookings.Enabled {
		// Conflict checks read the live calendar, not the cache.
		liveFetcher := service.NewEventFetcher(backend, normalizer, metrics, logr)
		bookingHandler = handler.NewBookingHandler(service.NewBookingService(backend, liveFetcher, policy, window, queue, metrics, logr))
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	r := newRouter(cfg, logr, metrics, routeHandlers{
		system:       handler.NewSystemHandler(cacheRepo, queue, logr),
		metrics:      handler.NewMetricsHandler(metrics),
		agenda:       handler.NewAgendaHandler(service.NewAgendaService(fetcher, policy, loc, cfg.Agenda.DefaultDays, logr)),
		availability: handler.NewAvailabilityHandler(service.NewAvailabilityService(engine, fetcher, policy, window, metrics, logr)),
		rooms:        handler.NewRoomsHandler(policy, normalizer),
		bookings:     bookingHandler,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "provider", cfg.Calendar.Provider, "rooms", policy.Rooms())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newCalendarBackend(ctx context.Context, cfg *config.Config, loc *time.Location, logr *zap.Logger) (calendarBackend, error) {
	switch cfg.Calendar.Provider {
	case config.ProviderICS:
		return repository.NewICSCalendarRepository(nil, cfg.Calendar, loc, logr), nil
	default:
		return repository.NewGoogleCalendarRepository(ctx, cfg.Calendar, cfg.Bookings.Enabled, logr)
	}
}
