package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/deeres/gateway/internal/client"
	"github.com/deeres/gateway/internal/config"
	"github.com/deeres/gateway/internal/handler"
	"github.com/deeres/gateway/internal/middleware"
	"github.com/deeres/gateway/internal/poller"
	"github.com/deeres/gateway/internal/service"
	ws "github.com/deeres/gateway/internal/websocket"
)

func main() {
	// Load .env if present, then configuration
	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize validator
	validate := validator.New()

	// Initialize research backend client and service
	researchClient := client.NewResearchClient(&cfg.Backend)
	reportService := service.NewReportService(researchClient)

	if cfg.Backend.APIKey == "" {
		log.Println("Info: no backend API key configured, forwarding requests without X-API-Key")
	}

	// Initialize WebSocket hub (gateway-side polling for push subscribers)
	pollOptions := poller.Options{
		PollInterval:  time.Duration(cfg.Poll.IntervalSeconds) * time.Second,
		TickInterval:  time.Duration(cfg.Poll.TickSeconds) * time.Second,
		StageEstimate: time.Duration(cfg.Poll.StageSeconds) * time.Second,
	}
	hub := ws.NewHub(reportService, pollOptions)
	go hub.Run()

	// Initialize handlers
	reportHandler := handler.NewReportHandler(reportService, validate)

	// Optional Redis-backed rate limiter
	var rateLimiter *middleware.RateLimiter
	if cfg.RateLimit.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Printf("Warning: Redis not available, rate limiting degraded: %v", err)
		}
		rateLimiter = middleware.NewRateLimiter(redisClient)
	}

	// Initialize Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
	})

	// Global middleware
	app.Use(recover.New())
	isDebug := strings.EqualFold(cfg.Server.LogLevel, "debug")
	logFormat := "[${time}] ${status} - ${latency} ${method} ${path}\n"
	if isDebug {
		logFormat = "[${time}] ${status} - ${latency} ${method} ${path} ${queryParams} ${body}\n"
		log.Println("Debug logging enabled")
	}
	app.Use(logger.New(logger.Config{
		Format: logFormat,
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	// Base URL - timestamp
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"timestamp": time.Now().Unix(),
		})
	})

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
			"services": fiber.Map{
				"backend":   researchClient.IsConfigured(),
				"ratelimit": rateLimiter != nil,
				"auth":      cfg.JWT.Secret != "",
			},
		})
	})

	// Report routes, optionally behind bearer auth
	var report fiber.Router = app
	if cfg.JWT.Secret != "" {
		authMiddleware := middleware.NewAuthMiddleware(cfg.JWT.Secret)
		report = app.Group("/", authMiddleware.Authenticate())
	}

	if rateLimiter != nil {
		report.Post("/generate-report", rateLimiter.SubmitLimit(cfg.RateLimit.SubmitPerMin), reportHandler.Generate)
	} else {
		report.Post("/generate-report", reportHandler.Generate)
	}
	report.Get("/generate-report", reportHandler.Status)

	// WebSocket routes
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/jobs/:jobId", websocket.New(func(c *websocket.Conn) {
		jobID := c.Params("jobId")
		hub.HandleConnection(c, jobID)
	}))

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("Shutting down server...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("Server shutdown error: %v", err)
		}
	}()

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Gateway starting on %s (backend %s)", addr, cfg.Backend.BaseURL)
	if err := app.Listen(addr); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"detail": message,
	})
}
