package handlers

import (
	"fmt"
	"mime/multipart"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"devtrack/internal/config"
	"devtrack/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// File handling. The upload endpoint serves as the image host behind album
// URLs and profile pictures; anything else stays external.

func validateImageFile(file *multipart.FileHeader) error {
	// 5MB limit
	if file.Size > 5<<20 {
		return fiber.NewError(fiber.StatusBadRequest, "File size exceeds the limit of 5MB")
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	allowedExts := map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}
	if !allowedExts[ext] {
		return fiber.NewError(fiber.StatusBadRequest, "File type not allowed")
	}

	contentType := file.Header.Get("Content-Type")
	if !strings.Contains(contentType, "image") {
		return fiber.NewError(fiber.StatusBadRequest, "File must be an image")
	}

	return nil
}

func GetFile(c *fiber.Ctx) error {
	filename := c.Params("filename")
	filePath := path.Join("uploads", filename)
	return c.SendFile(filePath)
}

// UploadFile stores an image and returns the local URL to reference it by.
func UploadFile(c *fiber.Ctx) error {
	uploadDir := "uploads"
	if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
		if err := os.Mkdir(uploadDir, os.ModePerm); err != nil {
			logger.ErrorLogger.Error("Error creating upload directory", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error creating upload directory",
				"success": false,
				"status":  500,
			})
		}
	}

	file, err := c.FormFile("file")
	if err != nil {
		logger.ErrorLogger.Error("Error uploading file", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Error uploading file",
			"success": false,
			"status":  400,
		})
	}

	if err := validateImageFile(file); err != nil {
		logger.ErrorLogger.Error("Error validating file", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": err.Error(),
			"success": false,
			"status":  400,
		})
	}

	// Timestamp-based name keeps uploads unique
	newFilename := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(file.Filename))

	filePath := path.Join(uploadDir, newFilename)
	if err := c.SaveFile(file, filePath); err != nil {
		logger.ErrorLogger.Error("Error saving file", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error saving file",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("File uploaded", zap.String("filename", newFilename))
	return c.JSON(fiber.Map{
		"message": "File uploaded successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"filename": newFilename,
			"url":      fmt.Sprintf("/api/v1/upload/%s", newFilename),
			"size":     file.Size,
		},
	})
}

// UploadProfilePicture stores an image and points the caller's account at it.
func UploadProfilePicture(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	uploadDir := "uploads"
	if _, err := os.Stat(uploadDir); os.IsNotExist(err) {
		if err := os.Mkdir(uploadDir, os.ModePerm); err != nil {
			logger.ErrorLogger.Error("Error creating upload directory", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error creating upload directory",
				"success": false,
				"status":  500,
			})
		}
	}

	file, err := c.FormFile("profile_picture")
	if err != nil {
		logger.ErrorLogger.Error("Error uploading file", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Error uploading file",
			"success": false,
			"status":  400,
		})
	}

	if err := validateImageFile(file); err != nil {
		logger.ErrorLogger.Error("Error validating file", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": err.Error(),
			"success": false,
			"status":  400,
		})
	}

	newFilename := fmt.Sprintf("%d%s", time.Now().UnixNano(), filepath.Ext(file.Filename))
	filePath := path.Join(uploadDir, newFilename)

	if err := c.SaveFile(file, filePath); err != nil {
		logger.ErrorLogger.Error("Error saving file", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error saving file",
			"success": false,
			"status":  500,
		})
	}

	fileURL := fmt.Sprintf("/api/v1/upload/%s", newFilename)

	_, err = config.DB.Exec("UPDATE users SET profile_picture = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2", fileURL, userID)
	if err != nil {
		logger.ErrorLogger.Error("Error updating profile picture", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating profile picture",
			"success": false,
			"status":  500,
		})
	}

	config.RedisClient.Del(config.Ctx, fmt.Sprintf("user:%d", userID))

	logger.AuditLogger.Info("Profile picture uploaded", zap.String("filename", newFilename))
	return c.JSON(fiber.Map{
		"message": "Profile picture uploaded successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"profile_picture": fileURL,
		},
	})
}
