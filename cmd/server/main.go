package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stwalsh4118/ng911/internal/address"
	"github.com/stwalsh4118/ng911/internal/centerline"
	"github.com/stwalsh4118/ng911/internal/config"
	"github.com/stwalsh4118/ng911/internal/handlers"
	"github.com/stwalsh4118/ng911/internal/identifier"
	"github.com/stwalsh4118/ng911/internal/logger"
	"github.com/stwalsh4118/ng911/internal/middleware"
	"github.com/stwalsh4118/ng911/internal/schema"
	"github.com/stwalsh4118/ng911/internal/store"
	"github.com/stwalsh4118/ng911/internal/validation"
)

const (
	shutdownTimeout = 30 * time.Second
)

func main() {
	// Load configuration from config.json and environment variables
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize structured logger
	log := logger.New(cfg.Server.Env)
	log.Info("Starting NG911 API", map[string]interface{}{
		"version":     handlers.APIVersion,
		"environment": cfg.Server.Env,
		"port":        cfg.Server.Port,
		"agency":      cfg.NG911.AgencyID,
	})

	// Create the PostGIS-backed feature store
	ctx := context.Background()
	st, err := store.NewPostgresStore(ctx, cfg.Database, cfg.NG911.SRID)
	if err != nil {
		log.Fatal("Failed to connect to geodatabase", err, map[string]interface{}{
			"host": cfg.Database.Host,
			"port": cfg.Database.Port,
			"name": cfg.Database.Name,
		})
	}
	defer st.Close()

	log.Info("Geodatabase connection established", map[string]interface{}{
		"host":     cfg.Database.Host,
		"port":     cfg.Database.Port,
		"database": cfg.Database.Name,
		"srid":     cfg.NG911.SRID,
		"pool_min": cfg.Database.PoolMin,
		"pool_max": cfg.Database.PoolMax,
	})

	// Wire the engine: schema registry, identifier allocator, creator,
	// validator, centerline resolver
	registry := schema.NewRegistry(cfg.NG911.SchemasPath, log)
	allocator := identifier.NewAllocator(st, log, cfg.NG911.AgencyID)

	creator, err := address.NewCreator(st, registry, allocator, log, cfg.NG911)
	if err != nil {
		log.Fatal("Failed to initialize address creator", err, map[string]interface{}{
			"schemas_path": cfg.NG911.SchemasPath,
		})
	}

	addressValidator, err := validation.NewValidator(st, registry, log)
	if err != nil {
		log.Fatal("Failed to initialize address validator", err, map[string]interface{}{
			"schemas_path": cfg.NG911.SchemasPath,
		})
	}

	roadSchema, err := registry.Load(schema.TypeRoadCenterline)
	if err != nil {
		log.Fatal("Failed to load road centerline schema", err, nil)
	}
	resolver := centerline.NewResolver(st, log, roadSchema.Layer, centerline.CreationLadder)

	// Setup Gin router
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	// Add middleware in order: RequestID -> Logger -> Recovery -> CORS
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(log))
	router.Use(middleware.Recovery(log))
	router.Use(middleware.CORS(cfg.CORS.Origins))

	// Register health check routes
	healthHandler := handlers.NewHealthHandler(st, cfg.Server.Env)
	router.GET("/health", healthHandler.Health)
	router.GET("/health/ready", healthHandler.Ready)
	router.GET("/api/v1/info", healthHandler.Info)

	// Initialize handlers
	addressHandler := handlers.NewAddressHandler(creator, addressValidator)
	centerlineHandler := handlers.NewCenterlineHandler(resolver)

	// Register API v1 routes
	v1 := router.Group("/api/v1")
	{
		addresses := v1.Group("/addresses")
		{
			addresses.POST("", addressHandler.Create)
			addresses.POST("/validate", addressHandler.Validate)
		}
		centerlines := v1.Group("/centerlines")
		{
			centerlines.GET("/nearest", centerlineHandler.Nearest)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server listening", map[string]interface{}{
			"port": cfg.Server.Port,
			"addr": srv.Addr,
		})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start", err, nil)
		}
	}()

	// Wait for interrupt signal (SIGINT or SIGTERM)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	// Graceful shutdown
	log.Info("Shutting down server...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", err, map[string]interface{}{
			"timeout": shutdownTimeout.String(),
		})
	}

	log.Info("Server exited", nil)
}
