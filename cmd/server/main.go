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

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/cors"

	"github.com/mlevkov/tickethub/internal/config"
	"github.com/mlevkov/tickethub/internal/db"
	"github.com/mlevkov/tickethub/internal/events"
	"github.com/mlevkov/tickethub/internal/export"
	"github.com/mlevkov/tickethub/internal/ingestion"
	"github.com/mlevkov/tickethub/internal/logging"
	"github.com/mlevkov/tickethub/internal/middleware"
	"github.com/mlevkov/tickethub/internal/repository"
	"github.com/mlevkov/tickethub/internal/storage"
	"github.com/mlevkov/tickethub/internal/tickets"
	"github.com/mlevkov/tickethub/internal/validation"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := logging.New(cfg.Logging)

	conn, err := db.NewConnection(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.Database, "./migrations"); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	minioClient, err := minio.New(cfg.Storage.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Storage.AccessKey, cfg.Storage.SecretKey, ""),
		Secure: cfg.Storage.UseSSL,
	})
	if err != nil {
		log.Fatalf("Failed to create object storage client: %v", err)
	}

	store := storage.NewStore(storage.Wrap(minioClient), storage.Config{
		Bucket: cfg.Storage.Bucket,
		Folder: cfg.Storage.Folder,
	}, logger)
	if err := store.EnsureBucket(ctx); err != nil {
		log.Fatalf("Failed to prepare storage bucket: %v", err)
	}

	ticketRepo := repository.NewTicketRepository(conn)
	personRepo := repository.NewPersonRepository(conn)
	eventRepo := repository.NewEventRepository(conn)
	venueRepo := repository.NewVenueRepository(conn)
	importLogRepo := repository.NewImportLogRepository(conn)

	broker := events.NewBroker(logger)
	checker := validation.NewChecker(ticketRepo)

	ticketService := tickets.NewService(conn, ticketRepo, personRepo, eventRepo, venueRepo,
		checker, broker, logger)
	coordinator := ingestion.NewCoordinator(ingestion.NewParser(), store, conn,
		ticketService, importLogRepo, broker, logger)
	exportService := export.NewService(ticketRepo)

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.Server.CORSOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	router := chi.NewRouter()
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(middleware.Logging(logger))
	router.Use(chimiddleware.Recoverer)
	router.Use(corsHandler.Handler)

	router.Route("/api", func(r chi.Router) {
		tickets.NewHTTPHandler(ticketService).Register(r)
		ingestion.NewHTTPHandler(coordinator, logger).Register(r)
		export.NewHTTPHandler(exportService, logger).Register(r)
		r.Method(http.MethodGet, "/tickets/stream", events.NewHTTPHandler(broker))
	})
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// No write timeout: /api/tickets/stream holds its connection open.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("server exited")
}
