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
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"

	"github.com/murat7074/elisishop/checkout"
	"github.com/murat7074/elisishop/handler"
	"github.com/murat7074/elisishop/infra/config"
	"github.com/murat7074/elisishop/infra/logger"
	"github.com/murat7074/elisishop/infra/middle"
	"github.com/murat7074/elisishop/infra/opensearch"
	"github.com/murat7074/elisishop/infra/response"
	"github.com/murat7074/elisishop/notify"
	"github.com/murat7074/elisishop/store"

	// Register payment gateways
	_ "github.com/murat7074/elisishop/gateway/iyzico"
	_ "github.com/murat7074/elisishop/gateway/paytr"
	_ "github.com/murat7074/elisishop/gateway/shopier"
	_ "github.com/murat7074/elisishop/gateway/stripe"
)

var openSearchLogger *opensearch.Logger

func init() {
	// Load Env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("No .env file loaded: %v", err)
	}
	// init conf
	_ = config.App()

	cfg := config.GetAppConfig()
	if cfg.EnableLogging {
		osClient, err := opensearch.NewClient(cfg)
		if err != nil {
			log.Printf("Failed to initialize OpenSearch client: %v", err)
			log.Println("Continuing without OpenSearch logging...")
		} else {
			openSearchLogger = opensearch.NewLogger(osClient)
			log.Println("OpenSearch logging initialized successfully")
		}
	} else {
		log.Println("OpenSearch logging is disabled")
	}

	logger.InitGlobalLogger(openSearchLogger)
}

func main() {
	cfg := config.GetAppConfig()

	st, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	gateways := config.NewGatewayConfig()
	gateways.LoadFromEnv()

	var sender notify.Sender
	if cfg.BrevoAPIKey != "" {
		brevoSender, err := notify.NewBrevoSender(cfg.BrevoAPIKey, cfg.SellerName, cfg.SellerEmail)
		if err != nil {
			log.Fatalf("Failed to initialize email sender: %v", err)
		}
		sender = brevoSender
	} else {
		log.Println("BREVO_API_KEY not set, order emails are disabled")
	}

	service, err := checkout.NewService(checkout.Options{
		Store:       st,
		Gateways:    gateways,
		Sender:      sender,
		Events:      openSearchLogger,
		Validate:    config.App().Validator,
		Provider:    cfg.ActiveProvider,
		SellerEmail: cfg.SellerEmail,
		SellerName:  cfg.SellerName,
	})
	if err != nil {
		log.Fatalf("Failed to initialize checkout service: %v", err)
	}

	paymentHandler := handler.NewPaymentHandler(service)

	// Chi Define Routes
	r := chi.NewRouter()

	// Basic Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Security Middleware
	rateLimiter := middle.NewRateLimiter()
	r.Use(middle.SecurityHeadersMiddleware())
	r.Use(middle.RateLimitMiddleware(rateLimiter))
	r.Use(middle.RequestValidationMiddleware())

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Origin", "X-Requested-With", "X-User-Id", "X-User-Name", "X-User-Email"},
		ExposedHeaders:   []string{"Link", "Content-Length"},
		AllowCredentials: true,
		MaxAge:           300, // Preflight cache time (second)
	}))

	// Health check endpoint
	r.Get("/health", handler.Health)

	// Payment routes
	r.Route("/payment", func(r chi.Router) {
		r.Post("/checkout_session", paymentHandler.CheckoutSession)

		// Webhook routes, no auth: gateways call these directly
		r.Post("/webhook", paymentHandler.Webhook)
		r.Post("/webhook/{provider}", paymentHandler.Webhook)
	})

	// Not Found
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = response.WriteJSON(w, http.StatusNotFound, response.Response{Success: false, Message: "Not Found"})
	})

	// Create a context that listens for interrupt and terminate signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           r,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 60 * time.Second,
	}

	go func() {
		err := server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Fatal(err.Error())
		}
	}()

	log.Println("API is running on", cfg.Port)

	// Block until a signal is received
	<-ctx.Done()

	log.Println("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}
}
