package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"devtrack/internal/config"
	"devtrack/internal/models"
	"devtrack/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Task handlers. Tasks form a tree through the nullable parent reference;
// one level of nesting is what the clients use, but the API accepts deeper
// trees and deletes whole subtrees.

// validStatus reports whether status is one of: todo, in-progress, done.
func validStatus(status string) bool {
	switch status {
	case "todo", "in-progress", "done":
		return true
	default:
		return false
	}
}

// parseDueDate accepts RFC3339 timestamps or plain dates (2006-01-02).
func parseDueDate(raw string) (*time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}, task *models.Task) error {
	return row.Scan(&task.ID, &task.CreatorID, &task.Title, &task.Description,
		&task.Status, &task.DueDate, &task.Parent, &task.CreatedAt, &task.UpdatedAt)
}

const taskColumns = "id, creator_id, title, description, status, due_date, parent_id, created_at, updated_at"

// CreateTask creates a task for the caller. Only the title is required;
// status always starts as "todo" unless the request says otherwise.
func CreateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type TaskRequest struct {
		Title       string `json:"title" validate:"required"`
		Description string `json:"description"`
		Status      string `json:"status" validate:"omitempty,oneof=todo in-progress done"`
		DueDate     string `json:"due_date"`
		Parent      *int   `json:"parent"`
	}

	var req TaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	if req.Status == "" {
		req.Status = "todo"
	}

	var dueDate *time.Time
	if req.DueDate != "" {
		parsed, err := parseDueDate(req.DueDate)
		if err != nil {
			logger.ErrorLogger.Error("Invalid due date in create task", zap.Error(err))
			return c.Status(400).JSON(fiber.Map{
				"message": "Invalid due date",
				"success": false,
				"status":  400,
			})
		}
		dueDate = parsed
	}

	// A subtask must hang off a task of the same creator
	if req.Parent != nil {
		var parentCreator int
		err := config.DB.QueryRow("SELECT creator_id FROM tasks WHERE id = $1", *req.Parent).Scan(&parentCreator)
		if err != nil {
			logger.ErrorLogger.Error("Parent task not found", zap.Error(err))
			return c.Status(404).JSON(fiber.Map{
				"message": "Parent task not found",
				"success": false,
				"status":  404,
			})
		}
		if parentCreator != userID {
			logger.SecurityLogger.Warn("Parent task owned by another user", zap.Int("user_id", userID), zap.Int("parent", *req.Parent))
			return c.Status(403).JSON(fiber.Map{
				"message": "Forbidden",
				"success": false,
				"status":  403,
			})
		}
	}

	var task models.Task
	err := scanTask(config.DB.QueryRow(
		"INSERT INTO tasks (creator_id, title, description, status, due_date, parent_id) VALUES ($1, $2, $3, $4, $5, $6) RETURNING "+taskColumns,
		userID, req.Title, req.Description, req.Status, dueDate, req.Parent,
	), &task)
	if err != nil {
		logger.ErrorLogger.Error("Error creating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating task",
			"success": false,
			"status":  500,
		})
	}

	config.Hub.Notify("task.created", task)
	logger.AuditLogger.Info("Task created successfully", zap.Int("task_id", task.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Task created successfully",
		"success": true,
		"status":  201,
		"data":    task,
	})
}

// ListTasks serves GET /tasks. With ?id= it returns that single task; with
// ?parent= it returns the subtasks of that task; without either it returns
// the caller's top-level tasks.
func ListTasks(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	if idParam := c.Query("id"); idParam != "" {
		return getTaskByID(c, userID, role, idParam)
	}

	var rows *sql.Rows
	var err error

	if parentParam := c.Query("parent"); parentParam != "" {
		parentID, convErr := strconv.Atoi(parentParam)
		if convErr != nil {
			logger.ErrorLogger.Error("Invalid parent ID", zap.Error(convErr))
			return c.Status(400).JSON(fiber.Map{
				"message": "Invalid parent ID",
				"success": false,
				"status":  400,
			})
		}
		rows, err = config.DB.Query(
			"SELECT "+taskColumns+" FROM tasks WHERE creator_id = $1 AND parent_id = $2 ORDER BY id",
			userID, parentID)
	} else {
		rows, err = config.DB.Query(
			"SELECT "+taskColumns+" FROM tasks WHERE creator_id = $1 AND parent_id IS NULL ORDER BY id",
			userID)
	}

	if err != nil {
		logger.ErrorLogger.Error("Error fetching tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching tasks",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		if err := scanTask(rows, &task); err != nil {
			logger.ErrorLogger.Error("Error scanning tasks", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning tasks",
				"success": false,
				"status":  500,
			})
		}
		tasks = append(tasks, task)
	}

	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over tasks", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over tasks",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Tasks fetched successfully")
	return c.JSON(fiber.Map{
		"message": "Tasks fetched successfully",
		"success": true,
		"status":  200,
		"data":    tasks,
	})
}

func getTaskByID(c *fiber.Ctx, userID int, role string, idParam string) error {
	taskID, err := strconv.Atoi(idParam)
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	// Try the Redis cache first
	cacheKey := fmt.Sprintf("task:%d", taskID)
	if cached, err := config.RedisClient.Get(config.Ctx, cacheKey).Result(); err == nil {
		var task models.Task
		if err = json.Unmarshal([]byte(cached), &task); err == nil {
			if role != "admin" && task.CreatorID != userID {
				logger.SecurityLogger.Warn("Forbidden", zap.Int("user_id", userID), zap.Int("task_id", taskID))
				return c.Status(403).JSON(fiber.Map{
					"message": "Forbidden",
					"success": false,
					"status":  403,
				})
			}
			logger.AuditLogger.Info("Task found (from cache)")
			return c.JSON(fiber.Map{
				"message": "Task found (from cache)",
				"success": true,
				"status":  200,
				"data":    task,
			})
		}
	}

	var task models.Task
	err = scanTask(config.DB.QueryRow(
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1", taskID), &task)
	if err != nil {
		logger.ErrorLogger.Error("Task not found", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	if role != "admin" && task.CreatorID != userID {
		logger.SecurityLogger.Warn("Forbidden", zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	// Cache the task for an hour
	taskJSON, err := json.Marshal(task)
	if err == nil {
		config.RedisClient.SetEX(config.Ctx, cacheKey, taskJSON, time.Hour)
	}

	logger.AuditLogger.Info("Task found")
	return c.JSON(fiber.Map{
		"message": "Task found",
		"success": true,
		"status":  200,
		"data":    task,
	})
}

// UpdateTask merges the submitted fields into the task at ?id=.
func UpdateTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	idParam := c.Query("id")
	if idParam == "" {
		logger.ErrorLogger.Error("Missing task ID in update")
		return c.Status(400).JSON(fiber.Map{
			"message": "Missing task ID",
			"success": false,
			"status":  400,
		})
	}
	taskID, err := strconv.Atoi(idParam)
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	var creatorID int
	err = config.DB.QueryRow("SELECT creator_id FROM tasks WHERE id = $1", taskID).Scan(&creatorID)
	if err != nil {
		logger.ErrorLogger.Error("Task not found", zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"message": "Task not found",
			"success": false,
			"status":  404,
		})
	}

	if role != "admin" && creatorID != userID {
		logger.SecurityLogger.Warn("You don't have permission to update this task", zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return c.Status(403).JSON(fiber.Map{
			"message": "You don't have permission to update this task",
			"success": false,
			"status":  403,
		})
	}

	// Pointers mark fields that may be absent from the body
	type UpdateTaskRequest struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		Status      *string `json:"status"`
		DueDate     *string `json:"due_date"`
	}

	var req UpdateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update task", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if req.Status != nil && !validStatus(*req.Status) {
		logger.ErrorLogger.Error("Invalid status in update task")
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid status",
			"success": false,
			"status":  400,
		})
	}

	var dueDate *time.Time
	if req.DueDate != nil && *req.DueDate != "" {
		parsed, err := parseDueDate(*req.DueDate)
		if err != nil {
			logger.ErrorLogger.Error("Invalid due date in update task", zap.Error(err))
			return c.Status(400).JSON(fiber.Map{
				"message": "Invalid due date",
				"success": false,
				"status":  400,
			})
		}
		dueDate = parsed
	}

	_, err = config.DB.Exec(`
		UPDATE tasks
		SET title = COALESCE(NULLIF($1, ''), title),
			description = COALESCE($2, description),
			status = COALESCE(NULLIF($3, ''), status),
			due_date = COALESCE($4, due_date),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $5`,
		req.Title, req.Description, req.Status, dueDate, taskID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating task",
			"success": false,
			"status":  500,
		})
	}

	var updatedTask models.Task
	err = scanTask(config.DB.QueryRow(
		"SELECT "+taskColumns+" FROM tasks WHERE id = $1", taskID), &updatedTask)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching updated task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching updated task",
			"success": false,
			"status":  500,
		})
	}

	// Refresh the cache for this task
	cacheKey := fmt.Sprintf("task:%d", taskID)
	config.RedisClient.Del(config.Ctx, cacheKey)
	taskJSON, err := json.Marshal(updatedTask)
	if err == nil {
		config.RedisClient.SetEX(config.Ctx, cacheKey, taskJSON, time.Hour)
	}

	config.Hub.Notify("task.updated", updatedTask)
	logger.AuditLogger.Info("Task updated", zap.Int("taskID", taskID))
	return c.Status(200).JSON(fiber.Map{
		"message": "Task updated successfully",
		"success": true,
		"status":  200,
		"data":    updatedTask,
	})
}

// DeleteTask removes the task at ?id= together with its whole subtree of
// subtasks.
func DeleteTask(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	idParam := c.Query("id")
	if idParam == "" {
		logger.ErrorLogger.Error("Missing task ID in delete")
		return c.Status(400).JSON(fiber.Map{
			"message": "Missing task ID",
			"success": false,
			"status":  400,
		})
	}
	taskID, err := strconv.Atoi(idParam)
	if err != nil {
		logger.ErrorLogger.Error("Invalid task ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid task ID",
			"success": false,
			"status":  400,
		})
	}

	var creatorID int
	err = config.DB.QueryRow("SELECT creator_id FROM tasks WHERE id = $1", taskID).Scan(&creatorID)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.ErrorLogger.Error("Task not found", zap.Error(err))
			return c.Status(404).JSON(fiber.Map{
				"message": "Task not found",
				"success": false,
				"status":  404,
			})
		}
		logger.ErrorLogger.Error("Error fetching task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching task",
			"success": false,
			"status":  500,
		})
	}

	if role != "admin" && userID != creatorID {
		logger.SecurityLogger.Warn("You don't have permission to delete this task", zap.String("role", role), zap.Int("user_id", userID), zap.Int("task_id", taskID))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	// Delete the whole subtree in one statement; RETURNING gives back every
	// removed id so the cache entries can be dropped too.
	rows, err := config.DB.Query(`
		WITH RECURSIVE subtree AS (
			SELECT id FROM tasks WHERE id = $1
			UNION ALL
			SELECT t.id FROM tasks t JOIN subtree s ON t.parent_id = s.id
		)
		DELETE FROM tasks WHERE id IN (SELECT id FROM subtree) RETURNING id`,
		taskID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting task", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	deleted := []int{}
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			logger.ErrorLogger.Error("Error scanning deleted task ids", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error deleting task",
				"success": false,
				"status":  500,
			})
		}
		deleted = append(deleted, id)
	}
	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating deleted task ids", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting task",
			"success": false,
			"status":  500,
		})
	}

	for _, id := range deleted {
		config.RedisClient.Del(config.Ctx, fmt.Sprintf("task:%d", id))
	}

	config.Hub.Notify("task.deleted", fiber.Map{"id": taskID, "deleted": deleted})
	logger.AuditLogger.Info("Task deleted", zap.Int("taskID", taskID), zap.Int("subtree_size", len(deleted)))
	return c.Status(200).JSON(fiber.Map{
		"message": "Task deleted successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"deleted": deleted,
		},
	})
}
