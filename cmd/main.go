// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/config"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/database"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/handler"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/repository"
	"github.com/jimyungkoh/hhplus-lecture-registration-system/internal/service"
)

func main() {
	ctx := context.Background()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := config.NewLogger(cfg.Env, cfg.LogLevel)
	logger.Info("starting lecture registration service", slog.String("env", cfg.Env))

	// ── 1. Connect to PostgreSQL ──────────────────────────────────────────
	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("database connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Error("database migrate failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("connected to postgres", slog.String("database", cfg.Database.Name))

	// ── 2. Wire up layers ────────────────────────────────────────────────
	lectureRepo := repository.NewLectureRepository()
	registrationRepo := repository.NewRegistrationRepository()
	lectureSvc := service.NewLectureService(
		logger, pool, lectureRepo, registrationRepo,
		cfg.Admission.MaxWait, cfg.Admission.Timeout,
	)
	lectureHandler := handler.NewLectureHandler(lectureSvc)

	// ── 3. Build the router ───────────────────────────────────────────────
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(handler.Logger(logger))  // structured access log
	r.Use(handler.CORS)            // permissive CORS for demo

	// Health
	r.Get("/health", handler.HealthCheck)

	// API routes
	r.Route("/lectures", func(r chi.Router) {
		r.Post("/", lectureHandler.CreateLecture)
		r.Post("/register", lectureHandler.Register)
		r.Get("/available/{date}", lectureHandler.AvailableLectures)
		r.Get("/registrations/{userId}", lectureHandler.UserRegistrations)
	})

	// ── 4. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		logger.Info("server listening", slog.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("server stopped")
}
