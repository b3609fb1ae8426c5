package config

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/go-redis/redis/v8"

	ws "devtrack/internal/websocket"
)

var (
	// Shared dependencies used across the application
	DB          *sql.DB
	SecretKey   = []byte("secret")
	Validate    = validator.New()
	Ctx         = context.Background()
	RedisClient *redis.Client
	Hub         *ws.Hub
)
