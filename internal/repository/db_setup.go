package repository

import (
	"database/sql"
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"
)

func CreateTableIfNotExists(db *sql.DB) {
	query := `
CREATE TABLE IF NOT EXISTS users (
    id SERIAL PRIMARY KEY,
    username VARCHAR(255) NOT NULL UNIQUE,
    email VARCHAR(255) NOT NULL UNIQUE,
    password VARCHAR(255) NOT NULL,
    role VARCHAR(255) NOT NULL,
    profile_picture VARCHAR(255),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS tasks (
    id SERIAL PRIMARY KEY,
    creator_id INT NOT NULL REFERENCES users (id),
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    status VARCHAR(32) NOT NULL DEFAULT 'todo',
    due_date TIMESTAMP,
    parent_id INT REFERENCES tasks (id),
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS progress (
    id SERIAL PRIMARY KEY,
    creator_id INT NOT NULL REFERENCES users (id),
    day_number INT NOT NULL,
    title VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    content TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS projects (
    id SERIAL PRIMARY KEY,
    creator_id INT NOT NULL REFERENCES users (id),
    name VARCHAR(255) NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    link_website VARCHAR(255) NOT NULL DEFAULT '',
    link_github VARCHAR(255) NOT NULL DEFAULT '',
    link_discord VARCHAR(255) NOT NULL DEFAULT '',
    collaborators INT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS topics (
    id UUID PRIMARY KEY,
    project_id INT NOT NULL REFERENCES projects (id) ON DELETE CASCADE,
    title VARCHAR(255) NOT NULL,
    content TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS albums (
    id SERIAL PRIMARY KEY,
    creator_id INT NOT NULL REFERENCES users (id),
    album_name VARCHAR(255) NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS images (
    id SERIAL PRIMARY KEY,
    album_id INT NOT NULL REFERENCES albums (id) ON DELETE CASCADE,
    uploader_id INT NOT NULL REFERENCES users (id),
    url TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error creating table: %v", err)
	} else {
		fmt.Println("Tables 'users', 'tasks', 'progress', 'projects', 'topics', 'albums', 'images' are ready.")
	}
}

func CreateAdminUser(db *sql.DB) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Error hashing password: %v", err)
	}

	query := "INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, $4) ON CONFLICT (email) DO NOTHING"
	_, err = db.Exec(query, "admin", "admin@mail.com", string(hashedPassword), "admin")
	if err != nil {
		log.Fatalf("Error inserting admin user: %v", err)
	} else {
		fmt.Println("Admin user 'admin' is created.")
	}
}

func DeleteAllTable(db *sql.DB) {
	query := `
    DROP TABLE IF EXISTS images;
    DROP TABLE IF EXISTS albums;
    DROP TABLE IF EXISTS topics;
    DROP TABLE IF EXISTS projects;
    DROP TABLE IF EXISTS progress;
    DROP TABLE IF EXISTS tasks;
    DROP TABLE IF EXISTS users;
    `

	_, err := db.Exec(query)
	if err != nil {
		log.Fatalf("Error deleting table: %v", err)
	} else {
		fmt.Println("All tables are deleted.")
	}
}
