package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/adetayo/edflowsim/backend/internal/adapters/database"
	"github.com/adetayo/edflowsim/backend/internal/adapters/events"
	"github.com/adetayo/edflowsim/backend/internal/api/handlers"
	"github.com/adetayo/edflowsim/backend/internal/api/routes"
	"github.com/adetayo/edflowsim/backend/internal/application/services"
	"github.com/adetayo/edflowsim/backend/internal/domain/providers"
	"github.com/adetayo/edflowsim/backend/internal/domain/repositories"
	"github.com/adetayo/edflowsim/backend/internal/infrastructure/clients/openai"
	"github.com/adetayo/edflowsim/backend/internal/infrastructure/clients/postgres"
	"github.com/adetayo/edflowsim/backend/internal/infrastructure/clients/redis"
	"github.com/adetayo/edflowsim/backend/internal/infrastructure/observability"
	"github.com/adetayo/edflowsim/backend/internal/simulation"
	"github.com/adetayo/edflowsim/backend/pkg/config"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	observability.InitLogger("edflowsim-api", cfg.Server.Env)
	logger := observability.GetLogger()

	// Initialize database client; the simulation can run entirely in memory
	// when Postgres is unavailable
	var patientRepo repositories.PatientRepository
	var journalDB *sqlx.DB

	pgClient, err := postgres.NewClient(&cfg.Database)
	if err != nil {
		logger.Warn().Err(err).Msg("Postgres unavailable, using in-memory patient store")
		patientRepo = database.NewMemoryPatientAdapter()
	} else {
		defer pgClient.Close()
		patientRepo = database.NewPatientAdapter(pgClient)
		journalDB = sqlx.NewDb(pgClient.DB(), "postgres")
		logger.Info().Msg("PostgreSQL client initialized successfully")
	}

	// Initialize event bus; Redis fans events out across processes, the
	// in-memory bus keeps a single-node run fully functional
	var eventBus providers.EventBus
	redisClient, err := redis.NewClient(&cfg.Redis)
	if err != nil {
		logger.Warn().Err(err).Msg("Redis unavailable, using in-memory event bus")
		eventBus = events.NewMemoryEventBus()
	} else {
		defer redisClient.Close()
		eventBus = events.NewRedisEventBus(redisClient)
		logger.Info().Msg("Redis event bus initialized successfully")
	}

	// Journal published events when Postgres is available
	if journalDB != nil {
		eventBus = events.NewRecordingEventBus(eventBus, journalDB)
	}

	// Initialize the simulation engine
	beds := simulation.NewBedPool(cfg.Simulation.BedCount)
	engine := simulation.NewEngine(patientRepo, eventBus, beds, cfg.Simulation,
		simulation.WithLogger(*logger))

	// Initialize services
	flowService := services.NewPatientFlowService(patientRepo, eventBus, beds, engine, *logger)

	var dischargeEval handlers.DischargeEvaluator
	if cfg.OpenAI.APIKey == "" {
		logger.Warn().Msg("OPENAI_API_KEY is not set; discharge assessment disabled")
	} else {
		openaiClient, err := openai.NewClient(&cfg.OpenAI)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize OpenAI client")
		} else {
			dischargeEval = services.NewDischargeService(patientRepo, eventBus, openaiClient, engine, *logger)
		}
	}

	// Initialize handlers
	simHandler := handlers.NewSimHandler(engine)
	patientHandler := handlers.NewPatientHandler(patientRepo, flowService, dischargeEval)
	sseHandler := handlers.NewSSEHandler(eventBus)
	wsHandler := handlers.NewWSHandler(eventBus)

	// Set up router
	router := routes.NewRouter(simHandler, patientHandler, sseHandler, wsHandler)
	handler := router.SetupRoutes()

	// Create HTTP server
	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     handler,
		ReadTimeout: 30 * time.Second,
		// SSE and WebSocket connections are long-lived
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Server shutting down...")

	// Stop the tick loop before tearing down its dependencies
	engine.Stop()

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Error during server shutdown")
	}

	// Close event bus
	if err := eventBus.Close(); err != nil {
		logger.Error().Err(err).Msg("Error closing event bus")
	}

	logger.Info().Msg("Server stopped")
}
