package v1

import (
	"devtrack/internal/api/v1/handlers"
	"devtrack/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

func RegisterRoutes(app *fiber.App) {
	api := app.Group("/api/v1")

	// Auth
	api.Post("/login", handlers.Login)
	api.Post("/register", handlers.Register)

	// User
	userRoutes := api.Group("/users", middleware.UseToken)
	userRoutes.Get("/", handlers.GetAllUsers)
	userRoutes.Get("/:id", handlers.GetUser)
	userRoutes.Put("/:id", handlers.UpdateUser)
	userRoutes.Delete("/:id", handlers.DeleteUser)

	// Task (?id= and ?parent= query params)
	taskRoutes := api.Group("/tasks", middleware.UseToken)
	taskRoutes.Post("/", handlers.CreateTask)
	taskRoutes.Get("/", handlers.ListTasks)
	taskRoutes.Put("/", handlers.UpdateTask)
	taskRoutes.Delete("/", handlers.DeleteTask)

	// Progress (?id= query param)
	progressRoutes := api.Group("/progress", middleware.UseToken)
	progressRoutes.Post("/", handlers.CreateProgress)
	progressRoutes.Get("/", handlers.ListProgress)
	progressRoutes.Put("/", handlers.UpdateProgress)
	progressRoutes.Delete("/", handlers.DeleteProgress)

	// Project and topics
	projectRoutes := api.Group("/projects", middleware.UseToken)
	projectRoutes.Post("/", handlers.CreateProject)
	projectRoutes.Get("/", handlers.ListProjects)
	projectRoutes.Get("/:id", handlers.GetProject)
	projectRoutes.Put("/:id", handlers.UpdateProject)
	projectRoutes.Delete("/:id", handlers.DeleteProject)
	projectRoutes.Post("/:id", handlers.AddTopic)
	projectRoutes.Post("/:id/topics", handlers.AddTopic)
	projectRoutes.Put("/:id/topics/:topicId", handlers.UpdateTopic)
	projectRoutes.Delete("/:id/topics/:topicId", handlers.DeleteTopic)

	// Albums and images
	albumAPI := app.Group("/api", middleware.UseToken)
	albumAPI.Get("/album/:albumName", handlers.GetAlbum)
	albumAPI.Post("/images", handlers.UploadImages)

	// File Upload
	uploadRoutes := api.Group("/upload", middleware.UseToken)
	uploadRoutes.Post("/", handlers.UploadFile)
	uploadRoutes.Get("/:filename", handlers.GetFile)
	uploadRoutes.Post("/profile_picture", handlers.UploadProfilePicture)
}
