package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	log "github.com/sirupsen/logrus"

	"namocoins/internal/app"
	"namocoins/internal/config"
	"namocoins/internal/handler"
	"namocoins/internal/mw"
)

func main() {
	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load config")
	}

	if level, err := log.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	application, err := app.New(ctx, cfg)
	cancel()
	if err != nil {
		log.WithError(err).Fatal("failed to init application")
	}
	defer application.Close()

	srv := &http.Server{
		Addr:         cfg.RunAddress,
		Handler:      newRouter(cfg, application),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	log.WithField("addr", cfg.RunAddress).Info("starting server")

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed")
			quit <- syscall.SIGTERM
		}
	}()

	<-quit
	log.Info("shutting down...")

	ctxShut, cancelShut := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShut()

	if err := srv.Shutdown(ctxShut); err != nil {
		log.WithError(err).Error("server shutdown failed")
	}

	log.Info("server stopped")
}

func newRouter(cfg *config.Config, a *app.App) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Post("/api/user/register", handler.RegisterHandler(a.Auth))
	r.Post("/api/user/login", handler.LoginHandler(a.Auth))
	r.Post("/api/admin/login", handler.AdminLoginHandler(a.Auth))
	r.Get("/api/shop", handler.ShopHandler(a.Rates))

	// Customer routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))

		r.Post("/api/shop/{productID}/buy", handler.BuyHandler(a.Orders))
		r.Get("/api/user/orders", handler.ListOrdersHandler(a.Orders))
		r.Get("/api/user/orders/{orderID}/pay", handler.PaymentInfoHandler(a.Orders))
		r.Post("/api/user/orders/{orderID}/proof", handler.AttachProofHandler(a.Orders))
		r.Get("/api/user/balance", handler.GetBalanceHandler(a.Balance))
	})

	// Admin routes
	r.Group(func(r chi.Router) {
		r.Use(mw.AuthMiddleware(cfg.JWTSecret))
		r.Use(mw.AdminOnly)

		r.Get("/api/admin/orders", handler.AdminOrdersHandler(a.Orders))
		r.Post("/api/admin/orders/{orderID}/status", handler.UpdateStatusHandler(a.Status))
		r.Post("/api/admin/settings/rate", handler.UpdateRateHandler(a.Rates))
		r.Get("/api/admin/products", handler.AdminProductsHandler(a.Rates))
		r.Post("/api/admin/products/{productID}", handler.UpdateProductHandler(a.Rates))
		r.Post("/api/admin/products/{productID}/recalc", handler.RecalcProductHandler(a.Rates))
	})

	return r
}

func setupLogging() {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.InfoLevel)
}
