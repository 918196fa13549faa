package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"

	"visa-assessor/advisor"
	"visa-assessor/config"
	"visa-assessor/database"
	"visa-assessor/handlers"
	"visa-assessor/metrics"
	"visa-assessor/queue"
	"visa-assessor/service"
	"visa-assessor/session"
)

func main() {
	// Load configuration
	cfg := config.Load()

	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	if cfg.LLMProvider == "gemini" && cfg.GeminiAPIKey == "" && !cfg.DemoMode {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}
	if cfg.LLMProvider == "openai" && cfg.OpenAIAPIKey == "" && !cfg.DemoMode {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	metrics.Register()

	// Initialize database
	db, err := database.NewDatabase(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}
	if err := db.Migrate(); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Initialize session store
	sessions := session.NewStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.SessionTTL)
	defer sessions.Close()

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := sessions.Ping(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	pingCancel()

	// Start the persistence queue
	tasks := queue.New(cfg.QueueSize, cfg.QueueWorkers, cfg.QueueMaxRetries)
	tasks.Start()
	defer tasks.Stop()

	// Event publishing is optional; the service degrades to no-op without it
	var publisher *queue.Publisher
	if cfg.AMQPURL != "" {
		publisher, err = queue.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, cfg.AssessedRoutingKey)
		if err != nil {
			log.Warnf("RabbitMQ unavailable, events disabled: %v", err)
		} else {
			defer publisher.Close()
		}
	}

	// Initialize service and handlers
	svc := service.NewService(cfg, db, sessions, tasks, publisher)
	advisors := advisor.NewCachedDirectoryService(db.GetDB())
	h := handlers.NewHandlers(cfg, svc, advisors)

	// Setup HTTP server
	router := gin.Default()
	h.RegisterRoutes(router)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start HTTP server in a goroutine
	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Info("Server exited")
}
