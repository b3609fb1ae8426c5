package models

import (
	"database/sql"
	"time"

	"github.com/lib/pq"
)

type User struct {
	ID             int            `json:"id"`
	Username       string         `json:"username"`
	Email          string         `json:"email"`
	Role           string         `json:"role"`
	ProfilePicture sql.NullString `json:"profile_picture"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Task is a to-do item. Parent points at another task's id when the task is
// a subtask; top-level tasks have a nil Parent.
type Task struct {
	ID          int        `json:"id"`
	CreatorID   int        `json:"creator_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Status      string     `json:"status"`
	DueDate     *time.Time `json:"due_date"`
	Parent      *int       `json:"parent"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Progress is a numbered daily log entry. Content keeps its bullet points in
// append order.
type Progress struct {
	ID          int            `json:"id"`
	CreatorID   int            `json:"creator_id"`
	DayNumber   int            `json:"day_number"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Content     pq.StringArray `json:"content"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type ProjectLinks struct {
	Website string `json:"website"`
	Github  string `json:"github"`
	Discord string `json:"discord"`
}

type Project struct {
	ID            int           `json:"id"`
	CreatorID     int           `json:"creator_id"`
	Name          string        `json:"name"`
	Description   string        `json:"description"`
	Links         ProjectLinks  `json:"links"`
	Collaborators pq.Int64Array `json:"collaborators"`
	Topics        []Topic       `json:"topics,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// Topic is a named free-text section of a project. Topics used to live as
// embedded sub-documents; here they are rows of their own keyed by uuid.
type Topic struct {
	ID        string    `json:"id"`
	ProjectID int       `json:"project_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Album struct {
	ID        int       `json:"id"`
	CreatorID int       `json:"creator_id"`
	AlbumName string    `json:"album_name"`
	CreatedAt time.Time `json:"created_at"`
}

type Image struct {
	ID         int       `json:"id"`
	AlbumID    int       `json:"album_id"`
	UploaderID int       `json:"uploader_id"`
	URL        string    `json:"url"`
	CreatedAt  time.Time `json:"created_at"`
}
