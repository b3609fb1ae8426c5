package handlers

import (
	"database/sql"

	"devtrack/internal/config"
	"devtrack/internal/models"
	"devtrack/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Album handlers. An album is a named bucket of image URLs; the images
// themselves live wherever the URL points. Album reads also return the
// images bucketed by the calendar date they were added, which is how the
// clients display them.

type dateGroup struct {
	Date   string         `json:"date"`
	Images []models.Image `json:"images"`
}

// groupByDate buckets images by the calendar-date portion of created_at,
// preserving the input order within and across groups.
func groupByDate(images []models.Image) []dateGroup {
	groups := []dateGroup{}
	index := map[string]int{}
	for _, img := range images {
		date := img.CreatedAt.Format("2006-01-02")
		i, ok := index[date]
		if !ok {
			i = len(groups)
			index[date] = i
			groups = append(groups, dateGroup{Date: date})
		}
		groups[i].Images = append(groups[i].Images, img)
	}
	return groups
}

func loadAlbumImages(albumID int) ([]models.Image, error) {
	rows, err := config.DB.Query(
		"SELECT id, album_id, uploader_id, url, created_at FROM images WHERE album_id = $1 ORDER BY created_at, id",
		albumID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	images := []models.Image{}
	for rows.Next() {
		var img models.Image
		if err := rows.Scan(&img.ID, &img.AlbumID, &img.UploaderID, &img.URL, &img.CreatedAt); err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// GetAlbum returns an album's images, flat and grouped by date.
func GetAlbum(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)
	albumName := c.Params("albumName")

	var album models.Album
	err := config.DB.QueryRow(
		"SELECT id, creator_id, album_name, created_at FROM albums WHERE album_name = $1",
		albumName).Scan(&album.ID, &album.CreatorID, &album.AlbumName, &album.CreatedAt)
	if err != nil {
		logger.ErrorLogger.Error("Album not found", zap.String("album", albumName), zap.Error(err))
		return c.Status(404).JSON(fiber.Map{
			"message": "Album not found",
			"success": false,
			"status":  404,
		})
	}

	if role != "admin" && album.CreatorID != userID {
		logger.SecurityLogger.Warn("Forbidden", zap.Int("user_id", userID), zap.String("album", albumName))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	images, err := loadAlbumImages(album.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching images", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching images",
			"success": false,
			"status":  500,
		})
	}

	if len(images) == 0 {
		logger.AuditLogger.Info("Album is empty", zap.String("album", albumName))
		return c.Status(404).JSON(fiber.Map{
			"message": "No images found",
			"success": false,
			"status":  404,
		})
	}

	logger.AuditLogger.Info("Images loaded successfully", zap.String("album", albumName), zap.Int("count", len(images)))
	return c.JSON(fiber.Map{
		"message": "Images loaded successfully",
		"success": true,
		"status":  200,
		"data": fiber.Map{
			"album":   album,
			"images":  images,
			"by_date": groupByDate(images),
		},
	})
}

// UploadImages adds a batch of already-hosted image URLs to an album,
// creating the album on first use, and returns the refreshed album.
func UploadImages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(int)
	role := c.Locals("role").(string)

	type UploadImagesRequest struct {
		Album string   `json:"album" validate:"required"`
		URLs  []string `json:"urls" validate:"required,min=1,dive,required"`
	}

	var req UploadImagesRequest
	if err := c.BodyParser(&req); err != nil {
		logger.ErrorLogger.Error("Bad request in upload images", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Bad request",
			"success": false,
			"status":  400,
		})
	}

	if err := config.Validate.Struct(req); err != nil {
		logger.ErrorLogger.Error("Validation error in upload images", zap.Error(err))
		return c.Status(400).JSON(fiber.Map{
			"message": "Validation error",
			"errors":  err.Error(),
			"success": false,
			"status":  400,
		})
	}

	var album models.Album
	err := config.DB.QueryRow(
		"SELECT id, creator_id, album_name, created_at FROM albums WHERE album_name = $1",
		req.Album).Scan(&album.ID, &album.CreatorID, &album.AlbumName, &album.CreatedAt)
	if err == sql.ErrNoRows {
		err = config.DB.QueryRow(
			"INSERT INTO albums (creator_id, album_name) VALUES ($1, $2) RETURNING id, creator_id, album_name, created_at",
			userID, req.Album).Scan(&album.ID, &album.CreatorID, &album.AlbumName, &album.CreatedAt)
	}
	if err != nil {
		logger.ErrorLogger.Error("Error resolving album", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error resolving album",
			"success": false,
			"status":  500,
		})
	}

	if role != "admin" && album.CreatorID != userID {
		logger.SecurityLogger.Warn("Forbidden", zap.Int("user_id", userID), zap.String("album", req.Album))
		return c.Status(403).JSON(fiber.Map{
			"message": "Forbidden",
			"success": false,
			"status":  403,
		})
	}

	for _, url := range req.URLs {
		if _, err := config.DB.Exec(
			"INSERT INTO images (album_id, uploader_id, url) VALUES ($1, $2, $3)",
			album.ID, userID, url); err != nil {
			logger.ErrorLogger.Error("Error saving image", zap.Error(err))
			return c.Status(500).JSON(fiber.Map{
				"message": "Error saving image",
				"success": false,
				"status":  500,
			})
		}
	}

	// Re-read the album so the response reflects what a follow-up GET sees
	images, err := loadAlbumImages(album.ID)
	if err != nil {
		logger.ErrorLogger.Error("Error fetching images", zap.Error(err))
		return c.Status(500).JSON(fiber.Map{
			"message": "Error fetching images",
			"success": false,
			"status":  500,
		})
	}

	config.Hub.Notify("album.updated", fiber.Map{"album": album.AlbumName, "added": len(req.URLs)})
	logger.AuditLogger.Info("Images uploaded", zap.String("album", album.AlbumName), zap.Int("count", len(req.URLs)))
	return c.Status(201).JSON(fiber.Map{
		"message": "Images uploaded successfully",
		"success": true,
		"status":  201,
		"data": fiber.Map{
			"album":   album,
			"images":  images,
			"by_date": groupByDate(images),
		},
	})
}
