package handlers

import (
	"time"

	"devtrack/internal/config"
	"devtrack/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// Auth handlers. Email is the account identity: unique, and the credential
// used at login.

func Register(c *fiber.Ctx) error {
	type RegisterRequest struct {
		Username string `json:"username" validate:"required,excludesall=@?"`
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required,min=6"`
	}

	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during register", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error hashing password",
			"success": false,
			"status":  500,
		})
	}

	var userID int
	err = config.DB.QueryRow(
		"INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, 'member') RETURNING id",
		req.Username, req.Email, string(hashedPassword)).Scan(&userID)
	if err != nil {
		// 23505 is the Postgres unique-violation code: the email (or
		// username) is already registered.
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" {
				logger.SecurityLogger.Warn("Duplicate account", zap.String("email", req.Email))
				return c.Status(409).JSON(fiber.Map{
					"message": "Account already exists",
					"success": false,
					"status":  409,
				})
			}
		}
		logger.ErrorLogger.Error("Error creating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating user",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("User registered successfully", zap.Int("userID", userID))
	return c.Status(201).JSON(fiber.Map{
		"message": "User created successfully",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"id": userID,
		},
	})
}

func Login(c *fiber.Ctx) error {
	type LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.AuditLogger.Warn("Validation error during login", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	var user struct {
		ID       int
		Username string
		Email    string
		Password string
		Role     string
	}

	err := config.DB.QueryRow(
		"SELECT id, username, email, password, role FROM users WHERE email = $1",
		req.Email).Scan(&user.ID, &user.Username, &user.Email, &user.Password, &user.Role)
	if err != nil {
		logger.SecurityLogger.Warn("User not found", zap.String("email", req.Email))
		return c.Status(401).JSON(fiber.Map{
			"message": "Invalid credentials",
			"success": false,
			"status":  401,
		})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		logger.SecurityLogger.Warn("Invalid password", zap.String("email", req.Email))
		return c.Status(401).JSON(fiber.Map{
			"message": "Invalid credentials",
			"success": false,
			"status":  401,
		})
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": user.ID,
		"email":   user.Email,
		"role":    user.Role,
		"exp":     time.Now().Add(time.Hour * 1).Unix(),
	})

	tokenString, err := token.SignedString(config.SecretKey)
	if err != nil {
		logger.ErrorLogger.Error("Error generating token", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error generating token",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Login success", zap.Int("user_id", user.ID), zap.String("role", user.Role))
	return c.JSON(fiber.Map{
		"message": "Login success",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"user_id": user.ID,
			"role":    user.Role,
			"token":   tokenString,
		},
	})
}
