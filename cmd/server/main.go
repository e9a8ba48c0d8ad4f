package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kipronoh/circulation/internal/config"
	"github.com/kipronoh/circulation/internal/database"
	"github.com/kipronoh/circulation/internal/handlers"
	"github.com/kipronoh/circulation/internal/middleware"
	"github.com/kipronoh/circulation/internal/services"
)

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Set Gin mode
	gin.SetMode(cfg.Server.Mode)

	// Initialize database connection
	db, err := database.New(cfg)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize Redis connection
	redis, err := database.NewRedis(cfg)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer redis.Close()

	// Initialize services
	authService, err := services.NewAuthService(
		db.Queries,
		cfg.JWT.Secret,
		time.Duration(cfg.JWT.ExpiryHours)*time.Hour,
		logger,
	)
	if err != nil {
		slog.Error("Failed to initialize auth service", "error", err)
		os.Exit(1)
	}

	inventoryService := services.NewInventoryService(db.Queries, logger)
	notificationService := services.NewNotificationService(db.Queries, redis.Client, logger)
	loanService := services.NewLoanService(db.Queries, inventoryService, notificationService, cfg.Circulation, logger)
	reservationService := services.NewReservationService(db.Queries, inventoryService, loanService, notificationService, cfg.Circulation, logger)

	// Returns hand freed copies to the reservation queue
	loanService.SetReservationFulfiller(reservationService)

	// Start the periodic sweeps
	scheduler := services.NewScheduler(loanService, reservationService, notificationService, logger)
	if err := scheduler.Start(); err != nil {
		slog.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	// Initialize Gin router
	r := gin.New()

	// Add global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.SecurityHeaders())

	// Initialize rate limiter
	rateLimiter := middleware.NewRateLimiter(redis.Client)

	// Initialize middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(db, redis)
	authHandler := handlers.NewAuthHandler(authService)
	bookHandler := handlers.NewBookHandler(inventoryService)
	loanHandler := handlers.NewLoanHandler(loanService)
	reservationHandler := handlers.NewReservationHandler(reservationService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)

	// Public routes (no authentication required)
	public := r.Group("/api/v1")
	{
		public.GET("/ping", healthHandler.Ping)
		public.GET("/health", healthHandler.Health)

		// Authentication routes with rate limiting
		auth := public.Group("/auth")
		auth.Use(rateLimiter.AuthLimit())
		{
			auth.POST("/login", authHandler.Login)
		}
	}

	// Protected routes (authentication required)
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware.RequireAuth())
	protected.Use(rateLimiter.APILimit())
	{
		books := protected.Group("/books")
		{
			books.GET("/:id", bookHandler.GetBook)
			books.GET("/:id/reservations", authMiddleware.RequireStaff(), reservationHandler.GetBookQueue)
		}

		loans := protected.Group("/loans")
		{
			loans.POST("/borrow", loanHandler.BorrowBook)
			loans.GET("/my", loanHandler.GetMyLoans)
			loans.GET("/overdue", authMiddleware.RequireStaff(), loanHandler.GetOverdueLoans)
			loans.POST("/:id/return", loanHandler.ReturnBook)
			loans.POST("/:id/renew", loanHandler.RenewLoan)
			loans.POST("/:id/pay-fine", authMiddleware.RequireStaff(), loanHandler.PayFine)
			loans.GET("/:id/renewals", loanHandler.GetRenewalHistory)
		}

		reservations := protected.Group("/reservations")
		{
			reservations.POST("", reservationHandler.ReserveBook)
			reservations.GET("/my", reservationHandler.GetMyReservations)
			reservations.DELETE("/:id", reservationHandler.CancelReservation)
		}

		users := protected.Group("/users")
		users.Use(authMiddleware.RequireStaff())
		{
			users.GET("/:id/loans", loanHandler.GetUserLoans)
		}

		protected.GET("/notifications/my", notificationHandler.GetMyNotifications)
		protected.GET("/notifications/:id", notificationHandler.GetNotification)
	}

	// Root health check
	r.GET("/health", healthHandler.Health)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Starting server", "port", port, "mode", cfg.Server.Mode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Failed to start server", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("Server exited")
}
