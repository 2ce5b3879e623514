package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/api"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/middleware"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/repository"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/internal/service"
	"github.com/smesochoritis-afk/streetkiosk-loyalty/pkg/logger"
	"go.uber.org/zap"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg, err := LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	err = logger.Initialize(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	zapLogger := logger.Logger()

	var store service.ProgressStore
	if cfg.Database.Driver == "memory" {
		zapLogger.Info("Using in-memory progress store")
		store = repository.NewMemoryStore()
	} else {
		repo, err := repository.New(cfg.Database)
		if err != nil {
			zapLogger.Fatal("Failed to initialize repository", zap.Error(err))
		}
		defer repo.Close()
		store = repo
	}

	loyaltyService := service.NewLoyaltyService(store, service.SystemClock(), service.Rules{
		TargetStamps: cfg.Loyalty.TargetStamps,
		ScanCooldown: time.Duration(cfg.Loyalty.ScanCooldownSeconds) * time.Second,
	})

	router := gin.New()
	router.Use(gin.Recovery())

	config := cors.DefaultConfig()
	config.AllowAllOrigins = true
	config.AllowMethods = []string{
		http.MethodHead,
		http.MethodGet,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
	}
	config.AllowHeaders = []string{"*"}
	config.AllowCredentials = true
	config.MaxAge = 12 * time.Hour

	router.Use(cors.New(config))

	adminAuth := middleware.NewAuthorization(cfg.Admin.Token)
	hub := api.NewEventHub()

	a := router.Group("/api/v1")
	api.NewLoyaltyRoutes(a, loyaltyService, hub, adminAuth, cfg.Loyalty.PublicBaseURL)
	api.NewEventRoutes(a, hub)

	addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	zapLogger.Info("Starting server", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		zapLogger.Fatal("Failed to start server", zap.Error(err))
	}
}
