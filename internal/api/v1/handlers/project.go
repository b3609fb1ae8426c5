package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"devtrack/internal/config"
	"devtrack/internal/models"
	"devtrack/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// Project handlers. Topics used to be embedded sub-documents saved with the
// whole project; they are rows of their own here, so editing one topic is a
// single-row update and cannot clobber a sibling.

const projectColumns = "id, creator_id, name, description, link_website, link_github, link_discord, collaborators, created_at, updated_at"

func scanProject(row interface {
	Scan(dest ...interface{}) error
}, p *models.Project) error {
	return row.Scan(&p.ID, &p.CreatorID, &p.Name, &p.Description,
		&p.Links.Website, &p.Links.Github, &p.Links.Discord,
		&p.Collaborators, &p.CreatedAt, &p.UpdatedAt)
}

// loadProject fetches a project row or returns sql.ErrNoRows.
func loadProject(projectID int, p *models.Project) error {
	return scanProject(config.DB.QueryRow(
		"SELECT "+projectColumns+" FROM projects WHERE id = $1", projectID), p)
}

// loadTopics fetches a project's topics in creation order.
func loadTopics(projectID int) ([]models.Topic, error) {
	rows, err := config.DB.Query(
		"SELECT id, project_id, title, content, created_at, updated_at FROM topics WHERE project_id = $1 ORDER BY created_at, id",
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	topics := []models.Topic{}
	for rows.Next() {
		var topic models.Topic
		if err := rows.Scan(&topic.ID, &topic.ProjectID, &topic.Title, &topic.Content, &topic.CreatedAt, &topic.UpdatedAt); err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, rows.Err()
}

// requireProject loads the project and enforces creator scoping. It writes
// the error response itself and returns false when the caller may not touch
// the project.
func requireProject(c *fiber.Ctx, projectID int, p *models.Project) bool {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	if err := loadProject(projectID, p); err != nil {
		if err == sql.ErrNoRows {
			logger.ErrorLogger.Error("Project not found", zap.Error(err))
			c.Status(404).JSON(fiber.Map{
				"message": "Project not found",
				"success": false,
				"status":  404,
			})
			return false
		}
		logger.ErrorLogger.Error("Error fetching project", zap.Error(err))
		c.Status(500).JSON(fiber.Map{
			"message": "Error fetching project",
			"success": false,
			"status":  500,
		})
		return false
	}

	if role != "admin" && p.CreatorID != userID {
		logger.SecurityLogger.Warn("Forbidden", zap.Int("user_id", userID), zap.Int("project_id", projectID))
		c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
		return false
	}
	return true
}

func invalidateProjectCache(projectID int) {
	config.RedisClient.Del(config.Ctx, fmt.Sprintf("project:%d", projectID))
}

// CreateProject creates a project for the caller. Links and collaborator ids
// are optional; collaborators are stored but grant nothing yet.
func CreateProject(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	type ProjectRequest struct {
		Name          string              `json:"name" validate:"required"`
		Description   string              `json:"description"`
		Links         models.ProjectLinks `json:"links"`
		Collaborators []int64             `json:"collaborators"`
	}

	var req ProjectRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in create project", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in create project", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	if req.Collaborators == nil {
		req.Collaborators = []int64{}
	}

	var project models.Project
	err := scanProject(config.DB.QueryRow(
		"INSERT INTO projects (creator_id, name, description, link_website, link_github, link_discord, collaborators) VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING "+projectColumns,
		userID, req.Name, req.Description, req.Links.Website, req.Links.Github, req.Links.Discord, pq.Array(req.Collaborators),
	), &project)
	if err != nil {
		logger.ErrorLogger.Error("Error creating project", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error creating project",
			"success": false,
			"status":  500,
		})
	}
	project.Topics = []models.Topic{}

	config.Hub.Notify("project.created", project)
	logger.AuditLogger.Info("Project created successfully", zap.Int("project_id", project.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Project created successfully",
		"success": true,
		"status":  201,
		"data":    project,
	})
}

// ListProjects returns the caller's projects (topics not included; the
// detail endpoint carries those).
func ListProjects(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)

	rows, err := config.DB.Query(
		"SELECT "+projectColumns+" FROM projects WHERE creator_id = $1 ORDER BY id", userID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching projects", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching projects",
			"success": false,
			"status":  500,
		})
	}
	defer rows.Close()

	projects := []models.Project{}
	for rows.Next() {
		var project models.Project
		if err := scanProject(rows, &project); err != nil {
			logger.ErrorLogger.Error("Error scanning projects", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error scanning projects",
				"success": false,
				"status":  500,
			})
		}
		projects = append(projects, project)
	}

	if err = rows.Err(); err != nil {
		logger.ErrorLogger.Error("Error iterating over projects", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error iterating over projects",
			"success": false,
			"status":  500,
		})
	}

	logger.AuditLogger.Info("Projects fetched successfully")
	return c.JSON(fiber.Map{
		"message": "Projects fetched successfully",
		"success": true,
		"status":  200,
		"data":    projects,
	})
}

// GetProject returns one project with its topics. Reads go through Redis.
func GetProject(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	projectID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid project ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid project ID",
			"success": false,
			"status":  400,
		})
	}

	cacheKey := fmt.Sprintf("project:%d", projectID)
	if cached, err := config.RedisClient.Get(config.Ctx, cacheKey).Result(); err == nil {
		var project models.Project
		if err = json.Unmarshal([]byte(cached), &project); err == nil {
			if role != "admin" && project.CreatorID != userID {
				logger.SecurityLogger.Warn("Forbidden", zap.Int("user_id", userID), zap.Int("project_id", projectID))
				return c.Status(403).JSON(fiber.Map{
					"message": "Forbidden",
					"success": false,
					"status":  403,
				})
			}
			logger.AuditLogger.Info("Project found (from cache)")
			return c.JSON(fiber.Map{
				"message": "Project found (from cache)",
				"success": true,
				"status":  200,
				"data":    project,
			})
		}
	}

	var project models.Project
	if !requireProject(c, projectID, &project) {
		return nil
	}

	topics, err := loadTopics(projectID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching topics", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching topics",
			"success": false,
			"status":  500,
		})
	}
	project.Topics = topics

	projectJSON, err := json.Marshal(project)
	if err == nil {
		config.RedisClient.SetEX(config.Ctx, cacheKey, projectJSON, time.Hour)
	}

	logger.AuditLogger.Info("Project found")
	return c.JSON(fiber.Map{
		"message": "Project found",
		"success": true,
		"status":  200,
		"data":    project,
	})
}

// UpdateProject merges the submitted fields into the project.
func UpdateProject(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid project ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid project ID",
			"success": false,
			"status":  400,
		})
	}

	var project models.Project
	if !requireProject(c, projectID, &project) {
		return nil
	}

	type UpdateProjectRequest struct {
		Name          *string              `json:"name"`
		Description   *string              `json:"description"`
		Links         *models.ProjectLinks `json:"links"`
		Collaborators *[]int64             `json:"collaborators"`
	}

	var req UpdateProjectRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update project", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	var website, github, discord *string
	if req.Links != nil {
		website, github, discord = &req.Links.Website, &req.Links.Github, &req.Links.Discord
	}
	var collaborators interface{}
	if req.Collaborators != nil {
		collaborators = pq.Array(*req.Collaborators)
	}

	_, err = config.DB.Exec(`
		UPDATE projects
		SET name = COALESCE(NULLIF($1, ''), name),
			description = COALESCE($2, description),
			link_website = COALESCE($3, link_website),
			link_github = COALESCE($4, link_github),
			link_discord = COALESCE($5, link_discord),
			collaborators = COALESCE($6, collaborators),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $7`,
		req.Name, req.Description, website, github, discord, collaborators, projectID,
	)
	if err != nil {
		logger.ErrorLogger.Error("Error updating project", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating project",
			"success": false,
			"status":  500,
		})
	}

	var updated models.Project
	if err := loadProject(projectID, &updated); err != nil {
		logger.ErrorLogger.Error("Error fetching updated project", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching updated project",
			"success": false,
			"status":  500,
		})
	}
	topics, err := loadTopics(projectID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching topics", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching topics",
			"success": false,
			"status":  500,
		})
	}
	updated.Topics = topics

	invalidateProjectCache(projectID)

	config.Hub.Notify("project.updated", updated)
	logger.AuditLogger.Info("Project updated", zap.Int("projectID", projectID))
	return c.JSON(fiber.Map{
		"message": "Project updated successfully",
		"success": true,
		"status":  200,
		"data":    updated,
	})
}

// DeleteProject removes a project; its topics go with it via the foreign
// key cascade.
func DeleteProject(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid project ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid project ID",
			"success": false,
			"status":  400,
		})
	}

	var project models.Project
	if !requireProject(c, projectID, &project) {
		return nil
	}

	_, err = config.DB.Exec("DELETE FROM projects WHERE id = $1", projectID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting project", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting project",
			"success": false,
			"status":  500,
		})
	}

	invalidateProjectCache(projectID)

	config.Hub.Notify("project.deleted", fiber.Map{"id": projectID})
	logger.AuditLogger.Info("Project deleted", zap.Int("projectID", projectID))
	return c.Status(200).JSON(fiber.Map{
		"message": "Project deleted successfully",
		"success": true,
		"status":  200,
	})
}

// AddTopic appends a new empty topic to the project.
func AddTopic(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid project ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid project ID",
			"success": false,
			"status":  400,
		})
	}

	type TopicRequest struct {
		Title string `json:"title" validate:"required"`
	}

	var req TopicRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in add topic", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in add topic", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Title is required",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	var project models.Project
	if !requireProject(c, projectID, &project) {
		return nil
	}

	var topic models.Topic
	err = config.DB.QueryRow(
		"INSERT INTO topics (id, project_id, title) VALUES ($1, $2, $3) RETURNING id, project_id, title, content, created_at, updated_at",
		uuid.New(), projectID, req.Title,
	).Scan(&topic.ID, &topic.ProjectID, &topic.Title, &topic.Content, &topic.CreatedAt, &topic.UpdatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Error adding topic", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error adding topic",
			"success": false,
			"status":  500,
		})
	}

	topics, err := loadTopics(projectID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching topics", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching topics",
			"success": false,
			"status":  500,
		})
	}
	project.Topics = topics

	invalidateProjectCache(projectID)

	config.Hub.Notify("topic.created", topic)
	logger.AuditLogger.Info("Topic added", zap.Int("projectID", projectID), zap.String("topicID", topic.ID))
	return c.Status(201).JSON(fiber.Map{
		"message": "Topic added successfully",
		"success": true,
		"status":  201,
		"data":    project,
	})
}

// UpdateTopic overwrites one topic's content. The statement is scoped by
// project id and topic id together, so a topic id from another project
// cannot match.
func UpdateTopic(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid project ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid project ID",
			"success": false,
			"status":  400,
		})
	}
	topicID, err := uuid.Parse(c.Params("topicId"))
	if err != nil {
		logger.ErrorLogger.Error("Invalid topic ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid topic ID",
			"success": false,
			"status":  400,
		})
	}

	type UpdateTopicRequest struct {
		Content string `json:"content"`
	}

	var req UpdateTopicRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in update topic", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	var project models.Project
	if !requireProject(c, projectID, &project) {
		return nil
	}

	var topic models.Topic
	err = config.DB.QueryRow(
		"UPDATE topics SET content = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2 AND project_id = $3 RETURNING id, project_id, title, content, created_at, updated_at",
		req.Content, topicID, projectID,
	).Scan(&topic.ID, &topic.ProjectID, &topic.Title, &topic.Content, &topic.CreatedAt, &topic.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			logger.ErrorLogger.Error("Topic not found", zap.Error(err))
			return c.Status(404).JSON(fiber.Map{
				"message": "Topic not found",
				"success": false,
				"status":  404,
			})
		}
		logger.ErrorLogger.Error("Error updating topic", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error updating topic",
			"success": false,
			"status":  500,
		})
	}

	invalidateProjectCache(projectID)

	config.Hub.Notify("topic.updated", topic)
	logger.AuditLogger.Info("Topic updated", zap.Int("projectID", projectID), zap.String("topicID", topic.ID))
	return c.JSON(fiber.Map{
		"message": "Topic updated successfully",
		"success": true,
		"status":  200,
		"data":    topic,
	})
}

// DeleteTopic removes one topic from the project.
func DeleteTopic(c *fiber.Ctx) error {
	projectID, err := c.ParamsInt("id")
	if err != nil {
		logger.ErrorLogger.Error("Invalid project ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid project ID",
			"success": false,
			"status":  400,
		})
	}
	topicID, err := uuid.Parse(c.Params("topicId"))
	if err != nil {
		logger.ErrorLogger.Error("Invalid topic ID", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Invalid topic ID",
			"success": false,
			"status":  400,
		})
	}

	var project models.Project
	if !requireProject(c, projectID, &project) {
		return nil
	}

	res, err := config.DB.Exec(
		"DELETE FROM topics WHERE id = $1 AND project_id = $2", topicID, projectID)
	if err != nil {
		logger.ErrorLogger.Error("Error deleting topic", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error deleting topic",
			"success": false,
			"status":  500,
		})
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		logger.ErrorLogger.Error("Topic not found")
		return c.Status(404).JSON(fiber.Map{
			"message": "Topic not found",
			"success": false,
			"status":  404,
		})
	}

	topics, err := loadTopics(projectID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching topics", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching topics",
			"success": false,
			"status":  500,
		})
	}
	project.Topics = topics

	invalidateProjectCache(projectID)

	config.Hub.Notify("topic.deleted", fiber.Map{"id": topicID.String(), "project_id": projectID})
	logger.AuditLogger.Info("Topic deleted", zap.Int("projectID", projectID), zap.String("topicID", topicID.String()))
	return c.JSON(fiber.Map{
		"message": "Topic deleted successfully",
		"success": true,
		"status":  200,
		"data":    project,
	})
}
