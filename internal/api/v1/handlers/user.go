package handlers

import (
	"encoding/json"
	"fmt"
	"time"

	"devtrack/internal/config"
	"devtrack/internal/models"
	"devtrack/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// User handlers

// GetAllUsers lists every account, accessible only by admin.
func GetAllUsers(c *fiber.Ctx) error {
	role := c.Locals("role").(string)

	if role != "admin" {
		logger.SecurityLogger.Warn("Forbidden", zap.String("role", role))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	rows, err := config.DB.Query("SELECT id, username, email, role, profile_picture, created_at, updated_at FROM users")
	if err != nil {
		logger.ErrorLogger.Error("Error fetching users", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching users",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	var users []models.User
	for rows.Next() {
		var user models.User
		err := rows.Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.ProfilePicture, &user.CreatedAt, &user.UpdatedAt)
		if err != nil {
			logger.ErrorLogger.Error("Error scanning users", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning users",
				"success": false,
				"status":  500,
			})
		}
		if !user.ProfilePicture.Valid {
			user.ProfilePicture.String = ""
		}
		users = append(users, user)
	}

	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over users", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over users",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Users fetched successfully")
	return c.JSON(fiber.Map{
		"message": "Users fetched successfully",
		"success": true,
		"status":  200,
		"data":    users,
	})
}

// GetUser returns a single account by ID, accessible by admin and the user
// itself. Reads go through the Redis cache.
func GetUser(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)
	targetID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid user ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	if role != "admin" && userID != targetID {
		logger.SecurityLogger.Warn("Forbidden", zap.String("role", role), zap.Int("user_id", userID), zap.Int("target_id", targetID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	cacheKey := fmt.Sprintf("user:%d", targetID)
	if cached, err := config.RedisClient.Get(config.Ctx, cacheKey).Result(); err == nil {
		var user models.User
		if err = json.Unmarshal([]byte(cached), &user); err == nil {
			return c.JSON(fiber.Map{
				"message": "User found (from cache)",
				"success": true,
				"status":  200,
				"data":    user,
			})
		}
	}

	var user models.User
	err = config.DB.QueryRow(
		"SELECT id, username, email, role, created_at, updated_at FROM users WHERE id = $1",
		targetID).Scan(&user.ID, &user.Username, &user.Email, &user.Role, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		logger.SecurityLogger.Warn("User not found", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"message": "User not found",
			"success": false,
			"status":  404,
		})
	}

	userJSON, err := json.Marshal(user)
	if err == nil {
		config.RedisClient.SetEX(config.Ctx, cacheKey, userJSON, time.Hour)
	}

	logger.AuditLogger.Info("User found")
	return c.JSON(fiber.Map{
		"message": "User found",
		"success": true,
		"status":  200,
		"data":    user,
	})
}

// UpdateUser merges the submitted fields into the account.
func UpdateUser(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	targetID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid user ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	if role != "admin" && userID != targetID {
		logger.SecurityLogger.Warn("You don't have permission to update this user", zap.String("role", role), zap.Int("user_id", userID), zap.Int("target_id", targetID))
		return c.Status(403).JSON(fiber.Map{
			"message": "You don't have permission to update this user",
			"success": false,
			"status":  403,
		})
	}

	type UpdateUserRequest struct {
		Username *string `json:"username"`
		Email    *string `json:"email"`
		Password *string `json:"password"`
	}

	var req UpdateUserRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	var hashedPassword string
	if req.Password != nil {
		hashed, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcrypt.DefaultCost)
		if err != nil {
			logger.ErrorLogger.Error("Error hashing password", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error hashing password",
				"success": false,
				"status":  500,
			})
		}
		hashedPassword = string(hashed)
	}

	// Only the submitted fields are changed (COALESCE keeps the rest)
	_, err = config.DB.Exec(`
        UPDATE users
        SET username = COALESCE(NULLIF($1, ''), username),
			email = COALESCE(NULLIF($2, ''), email),
			password = COALESCE(NULLIF($3, ''), password),
			updated_at = CURRENT_TIMESTAMP
        WHERE id = $4`,
		req.Username, req.Email, hashedPassword, targetID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating user",
			"success": false,
			"status":  500,
		})
	}

	var updatedUser models.User
	err = config.DB.QueryRow(
		"SELECT id, username, email, role, created_at, updated_at FROM users WHERE id = $1",
		targetID,
	).Scan(&updatedUser.ID, &updatedUser.Username, &updatedUser.Email, &updatedUser.Role, &updatedUser.CreatedAt, &updatedUser.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching updated user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching updated user",
			"success": false,
			"status":  500,
		})
	}

	cacheKey := fmt.Sprintf("user:%d", targetID)
	config.RedisClient.Del(config.Ctx, cacheKey)
	userJSON, err := json.Marshal(updatedUser)
	if err == nil {
		config.RedisClient.SetEX(config.Ctx, cacheKey, userJSON, time.Hour)
	}

	logger.AuditLogger.Info("User updated successfully", zap.Int("user_id", targetID))
	return c.JSON(fiber.Map{
		"message": "User updated successfully",
		"success": true,
		"status":  200,
		"data":    updatedUser,
	})
}

// DeleteUser removes an account.
func DeleteUser(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	targetID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid user ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid user ID",
			"success": false,
			"status":  400,
		})
	}

	if role != "admin" && userID != targetID {
		logger.SecurityLogger.Warn("You don't have permission to delete this user", zap.String("role", role), zap.Int("user_id", userID), zap.Int("target_id", targetID))
		return c.Status(403).JSON(fiber.Map{
			"message": "You don't have permission to delete this user",
			"success": false,
			"status":  403,
		})
	}

	_, err = config.DB.Exec(
		"DELETE FROM users WHERE id = $1",
		targetID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting user", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting user",
			"success": false,
			"status":  500,
		})
	}

	cacheKey := fmt.Sprintf("user:%d", targetID)
	config.RedisClient.Del(config.Ctx, cacheKey)

	logger.AuditLogger.Info("User deleted successfully", zap.Int("user_id", targetID))
	return c.Status(200).JSON(fiber.Map{
		"message": "User deleted successfully",
		"success": true,
		"status":  200,
	})
}
