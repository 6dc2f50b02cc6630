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
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/resumeup/backend/internal/config"
	"github.com/resumeup/backend/internal/handler"
	appMiddleware "github.com/resumeup/backend/internal/middleware"
	"github.com/resumeup/backend/internal/repository"
	"github.com/resumeup/backend/internal/service"
	"github.com/resumeup/backend/pkg/payment"
)

func main() {
	// Load .env file if present (for local development)
	if err := godotenv.Load(); err == nil {
		log.Println("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	ctx := context.Background()

	db, err := repository.NewDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database error: %v", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db); err != nil {
		log.Fatalf("migration error: %v", err)
	}
	log.Println("database connected & migrated")

	// Repositories
	userRepo := repository.NewUserRepository(db)
	orderRepo := repository.NewOrderRepository(db)
	schemeRepo := repository.NewSchemeRepository(db)

	// Services
	authSvc := service.NewAuthService(cfg.JWTSecret, cfg.AdminEmail, cfg.AdminPassword, userRepo)
	if err := authSvc.SeedAdmin(ctx); err != nil {
		log.Fatalf("admin seed error: %v", err)
	}

	gateway := payment.NewHMACGateway(cfg.PaymentBaseURL, cfg.PaymentSecret)
	membershipSvc := service.NewMembershipService(userRepo, orderRepo, schemeRepo)
	orderSvc := service.NewOrderService(orderRepo, schemeRepo, userRepo, gateway)

	// Handlers
	authHandler := handler.NewAuthHandler(authSvc)
	healthHandler := handler.NewHealthHandler(db)
	paymentHandler := handler.NewPaymentHandler(membershipSvc, orderSvc, gateway)
	orderHandler := handler.NewOrderHandler(orderSvc)
	inviteHandler := handler.NewInviteHandler(membershipSvc)
	schemeHandler := handler.NewSchemeHandler(orderSvc)

	// Build router
	r := chi.NewRouter()

	// Global middleware
	r.Use(appMiddleware.Recovery)
	r.Use(appMiddleware.Logger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Pay-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Global rate limiter (20 req/sec per IP, burst of 40)
	globalRL := appMiddleware.NewRateLimiter(20, 40)
	r.Use(globalRL.Middleware())

	// Public routes
	r.Get("/health", healthHandler.Check)
	r.Get("/api/schemes", schemeHandler.List)
	// The gateway redelivers this until acknowledged; the handler is
	// idempotent per order.
	r.Post("/api/payment/callback", paymentHandler.Callback)

	// Auth routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.StrictRateLimiter())
		r.Post("/api/auth/register", authHandler.Register)
		r.Post("/api/auth/login", authHandler.Login)
	})

	// Protected API routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))

		r.Get("/api/auth/me", authHandler.Me)
		r.Get("/api/membership", paymentHandler.GetMembership)

		r.Post("/api/payment/checkout", paymentHandler.CreateCheckout)
		r.Get("/api/orders", orderHandler.List)
		r.Post("/api/orders/{id}/status", orderHandler.UpdateStatus)

		r.Post("/api/invite/redeem", inviteHandler.Redeem)
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(appMiddleware.Auth(authSvc))
		r.Use(appMiddleware.AdminOnly)

		r.Put("/api/admin/schemes", schemeHandler.Upsert)
	})

	// Start server
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		log.Println("shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("membership backend listening at http://%s", addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("server error: %v", err)
	}
}
