package middleware

import (
	"fmt"
	"strings"
	"time"

	"devtrack/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v4"
)

// UseToken resolves the caller from the bearer token and stores the identity
// in the request locals. Handlers never look the session up themselves.
func UseToken(c *fiber.Ctx) error {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "No token provided", "success": false, "status": 401})
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token format", "success": false, "status": 401})
	}
	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return config.SecretKey, nil
	})
	if err != nil || !token.Valid {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token", "success": false, "status": 401})
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid token claims", "success": false, "status": 401})
	}
	if exp, ok := claims["exp"].(float64); !ok || int64(exp) < time.Now().Unix() {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Token expired", "success": false, "status": 401})
	}
	userID, ok := claims["user_id"].(float64)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid user ID in token", "success": false, "status": 401})
	}
	role, ok := claims["role"].(string)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Invalid role in token", "success": false, "status": 401})
	}
	// The token carries the identity, but the user row must still exist:
	// deleted accounts keep a valid token until expiry.
	var exists bool
	if err := config.DB.QueryRow("SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)", int(userID)).Scan(&exists); err != nil || !exists {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Unknown user", "success": false, "status": 401})
	}
	c.Locals("userID", int(userID))
	c.Locals("role", role)
	return c.Next()
}
