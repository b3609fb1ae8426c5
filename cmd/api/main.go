package main

import (
	"fmt"
	"time"

	"devtrack/configs"
	v1 "devtrack/internal/api/v1"
	"devtrack/internal/config"
	"devtrack/internal/middleware"
	"devtrack/internal/repository"
	myws "devtrack/internal/websocket"
	"devtrack/pkg/database"
	"devtrack/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"
)

func main() {
	// Initialize loggers
	logger.InitLoggers()
	defer logger.SyncLoggers()
	logger.SystemLogger.Info("Starting application", zap.String("time", time.Now().Format(time.RFC3339)))

	// Load config
	cfg := configs.LoadConfig()
	config.SecretKey = []byte(cfg.JWTSecret)

	// Initialize database
	config.DB = database.ConnectDB(cfg)
	defer config.DB.Close()

	logger.SystemLogger.Info("Database Connected")

	// Create tables if they don't exist
	repository.CreateTableIfNotExists(config.DB)
	// To seed an admin account:
	// repository.CreateAdminUser(config.DB)

	// Initialize Redis
	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	app := fiber.New()

	// Middleware
	app.Use(middleware.ErrorHandler())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	// Register API v1 routes
	v1.RegisterRoutes(app)

	// Entity-change feed over WebSocket
	hub := myws.NewHub()
	go hub.Run()
	config.Hub = hub
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		client := &myws.Client{Conn: c}
		hub.Register <- client
		defer func() {
			hub.Unregister <- client
		}()
		for {
			// Inbound frames are only read to detect the close
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))

	addr := fmt.Sprintf(":%d", cfg.AppPort)
	logger.SystemLogger.Info("Application ready", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		logger.ErrorLogger.Error("Application failed to start", zap.Error(err))
	}
}
