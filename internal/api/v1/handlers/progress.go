package handlers

import (
	"strconv"

	"devtrack/internal/config"
	"devtrack/internal/models"
	"devtrack/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Progress handlers. A progress entry is a numbered daily log; its content
// column is a Postgres text array holding the bullet points in append order.

const progressColumns = "id, creator_id, day_number, title, description, content, created_at, updated_at"

func scanProgress(row interface {
	Scan(dest ...interface{}) error
}, p *models.Progress) error {
	return row.Scan(&p.ID, &p.CreatorID, &p.DayNumber, &p.Title, &p.Description,
		&p.Content, &p.CreatedAt, &p.UpdatedAt)
}

// CreateProgress creates a new entry with an empty bullet list. Day numbers
// are not unique; two entries for the same day are allowed.
func CreateProgress(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type ProgressRequest struct {
		DayNumber   *int   `json:"day_number" validate:"required"`
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
	}

	var req ProgressRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create progress", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create progress", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	var progress models.Progress
	err := scanProgress(config.DB.QueryRow(
		"INSERT INTO progress (creator_id, day_number, title, description, content) VALUES ($1, $2, $3, $4, '{}') RETURNING "+progressColumns,
		userID, *req.DayNumber, req.Title, req.Description,
	), &progress)
	if err != nil {
		logger.ErrorLogger.Error("Error creating progress", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating progress",
			"success": false,
			"status":  500,
		})
	}

	config.Hub.Notify("progress.created", progress)
	logger.AuditLogger.Info("Progress created successfully", zap.Int("progress_id", progress.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Progress created successfully",
		"success": true,
		"status":  201,
		"data":    progress,
	})
}

// ListProgress serves GET /progress. With ?id= it returns one entry; without
// it returns all of the caller's entries sorted ascending by day number.
func ListProgress(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	if idParam := c.Query("id"); idParam != "" {
		progressID, err := strconv.Atoi(idParam)
		if err != nil {
			logger.ErrorLogger.Error("Invalid progress ID", zap.Error(err))
			return c.Status(400).JSON(fiber.Map{
				"message": "Invalid progress ID",
				"success": false,
				"status":  400,
			})
		}

		var progress models.Progress
		err = scanProgress(config.DB.QueryRow(
			"SELECT "+progressColumns+" FROM progress WHERE id = $1", progressID), &progress)
		if err != nil {
			logger.ErrorLogger.Error("Progress not found", zap.Error(err))
			return c.Status(404).JSON(fiber.Map{
				"message": "Progress not found",
				"success": false,
				"status":  404,
			})
		}

		if role != "admin" && progress.CreatorID != userID {
			logger.SecurityLogger.Warn("Forbidden", zap.Int("user_id", userID), zap.Int("progress_id", progressID))
			return c.Status(403).JSON(fiber.Map{
				"message": "Forbidden",
				"success": false,
				"status":  403,
			})
		}

		logger.AuditLogger.Info("Progress found")
		return c.JSON(fiber.Map{
			"message": "Progress found",
			"success": true,
			"status":  200,
			"data":    progress,
		})
	}

	// List order is day number ascending, regardless of creation order
	rows, err := config.DB.Query(
		"SELECT "+progressColumns+" FROM progress WHERE creator_id = $1 ORDER BY day_number ASC, id ASC",
		userID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching progress", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching progress",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	progresses := []models.Progress{}
	for rows.Next() {
		var progress models.Progress
		if err := scanProgress(rows, &progress); err != nil {
			logger.ErrorLogger.Error("Error scanning progress", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning progress",
				"success": false,
				"status":  500,
			})
		}
		progresses = append(progresses, progress)
	}

	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over progress", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over progress",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Progress fetched successfully")
	return c.JSON(fiber.Map{
		"message": "Progress fetched successfully",
		"success": true,
		"status":  200,
		"data":    progresses,
	})
}

// UpdateProgress merges the submitted fields into the entry at ?id=. A
// submitted content list replaces the stored one wholesale; this is how the
// clients persist their local bullet edits.
func UpdateProgress(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	idParam := c.Query("id")
	if idParam == "" {
		logger.ErrorLogger.Error("Missing progress ID in update")
		return c.Status(400).JSON(fiber.Map{
			"message": "Missing progress ID",
			"success": false,
			"status":  400,
		})
	}
	progressID, err := strconv.Atoi(idParam)
	if err != nil {
		logger.ErrorLogger.Error("Invalid progress ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid progress ID",
			"success": false,
			"status":  400,
		})
	}

	var creatorID int
	err = config.DB.QueryRow("SELECT creator_id FROM progress WHERE id = $1", progressID).Scan(&creatorID)
	if err != nil {
		logger.ErrorLogger.Error("Progress not found", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"message": "Progress not found",
			"success": false,
			"status":  404,
		})
	}

	if role != "admin" && creatorID != userID {
		logger.SecurityLogger.Warn("You don't have permission to update this progress", zap.Int("user_id", userID), zap.Int("progress_id", progressID))
		return c.Status(403).JSON(fiber.Map{
			"message": "You don't have permission to update this progress",
			"success": false,
			"status":  403,
		})
	}

	type UpdateProgressRequest struct {
		DayNumber   *int      `json:"day_number"`
		Title       *string   `json:"title"`
		Description *string   `json:"description"`
		Content     *[]string `json:"content"`
	}

	var req UpdateProgressRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update progress", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	// An omitted content field keeps the stored list; an empty list clears it
	var content interface{}
	if req.Content != nil {
		content = pq.Array(*req.Content)
	}

	_, err = config.DB.Exec(`
		UPDATE progress
		SET day_number = COALESCE($1, day_number),
			title = COALESCE(NULLIF($2, ''), title),
			description = COALESCE($3, description),
			content = COALESCE($4, content),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $5`,
		req.DayNumber, req.Title, req.Description, content, progressID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating progress", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating progress",
			"success": false,
			"status":  500,
		})
	}

	var updated models.Progress
	err = scanProgress(config.DB.QueryRow(
		"SELECT "+progressColumns+" FROM progress WHERE id = $1", progressID), &updated)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching updated progress", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching updated progress",
			"success": false,
			"status":  500,
		})
	}

	config.Hub.Notify("progress.updated", updated)
	logger.AuditLogger.Info("Progress updated", zap.Int("progressID", progressID))
	return c.Status(200).JSON(fiber.Map{
		"message": "Progress updated successfully",
		"success": true,
		"status":  200,
		"data":    updated,
	})
}

// DeleteProgress removes the entry at ?id=. Nothing cascades.
func DeleteProgress(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	idParam := c.Query("id")
	if idParam == "" {
		logger.ErrorLogger.Error("Missing progress ID in delete")
		return c.Status(400).JSON(fiber.Map{
			"message": "Missing progress ID",
			"success": false,
			"status":  400,
		})
	}
	progressID, err := strconv.Atoi(idParam)
	if err != nil {
		logger.ErrorLogger.Error("Invalid progress ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid progress ID",
			"success": false,
			"status":  400,
		})
	}

	var creatorID int
	err = config.DB.QueryRow("SELECT creator_id FROM progress WHERE id = $1", progressID).Scan(&creatorID)
	if err != nil {
		logger.ErrorLogger.Error("Progress not found", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"message": "Progress not found",
			"success": false,
			"status":  404,
		})
	}

	if role != "admin" && creatorID != userID {
		logger.SecurityLogger.Warn("You don't have permission to delete this progress", zap.Int("user_id", userID), zap.Int("progress_id", progressID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	_, err = config.DB.Exec("DELETE FROM progress WHERE id = $1", progressID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting progress", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting progress",
			"success": false,
			"status":  500,
		})
	}

	config.Hub.Notify("progress.deleted", fiber.Map{"id": progressID})
	logger.AuditLogger.Info("Progress deleted", zap.Int("progressID", progressID))
	return c.Status(200).JSON(fiber.Map{
		"message": "Progress deleted successfully",
		"success": true,
		"status":  200,
	})
}
