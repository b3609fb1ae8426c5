package handlers_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	v1 "devtrack/internal/api/v1"
	"devtrack/internal/config"
	"devtrack/internal/repository"
	"devtrack/pkg/logger"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	_ "github.com/lib/pq"
	"github.com/ory/dockertest/v3"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// The suite runs against throwaway Postgres and Redis containers.

func TestMain(m *testing.M) {
	os.Setenv("GO_ENV", "test")
	logger.InitLoggers()
	defer logger.SyncLoggers()

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to docker: %v", err)
	}

	pgResource, err := pool.Run("postgres", "16-alpine", []string{
		"POSTGRES_PASSWORD=secret",
		"POSTGRES_USER=postgres",
		"POSTGRES_DB=devtrack_test",
	})
	if err != nil {
		log.Fatalf("Could not start postgres: %v", err)
	}
	_ = pgResource.Expire(300)

	if err := pool.Retry(func() error {
		db, err := sql.Open("postgres", fmt.Sprintf(
			"host=localhost port=%s user=postgres password=secret dbname=devtrack_test sslmode=disable",
			pgResource.GetPort("5432/tcp")))
		if err != nil {
			return err
		}
		if err := db.Ping(); err != nil {
			return err
		}
		config.DB = db
		return nil
	}); err != nil {
		log.Fatalf("Could not connect to postgres: %v", err)
	}

	redisResource, err := pool.Run("redis", "7-alpine", nil)
	if err != nil {
		log.Fatalf("Could not start redis: %v", err)
	}
	_ = redisResource.Expire(300)

	if err := pool.Retry(func() error {
		client := redis.NewClient(&redis.Options{
			Addr: "localhost:" + redisResource.GetPort("6379/tcp"),
		})
		if err := client.Ping(config.Ctx).Err(); err != nil {
			return err
		}
		config.RedisClient = client
		return nil
	}); err != nil {
		log.Fatalf("Could not connect to redis: %v", err)
	}

	repository.CreateTableIfNotExists(config.DB)

	code := m.Run()

	repository.DeleteAllTable(config.DB)
	config.DB.Close()
	config.RedisClient.Close()
	_ = pool.Purge(pgResource)
	_ = pool.Purge(redisResource)

	os.Exit(code)
}

// createTestApp builds a Fiber app with the full route set.
func createTestApp() *fiber.App {
	app := fiber.New()
	v1.RegisterRoutes(app)
	return app
}

// doJSON issues a JSON request against the app, with an optional bearer
// token, and decodes the response envelope.
func doJSON(t *testing.T, app *fiber.App, method, target, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var result map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	return resp.StatusCode, result
}

// createTestAdmin inserts an admin account directly and logs it in.
func createTestAdmin(t *testing.T, app *fiber.App) (string, int) {
	t.Helper()

	unique := fmt.Sprintf("admin_%d", time.Now().UnixNano())
	hashed, err := bcrypt.GenerateFromPassword([]byte("adminpass"), bcrypt.DefaultCost)
	require.NoError(t, err)

	var adminID int
	err = config.DB.QueryRow(
		"INSERT INTO users (username, email, password, role) VALUES ($1, $2, $3, 'admin') RETURNING id",
		unique, unique+"@example.com", string(hashed),
	).Scan(&adminID)
	require.NoError(t, err)

	status, result := doJSON(t, app, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    unique + "@example.com",
		"password": "adminpass",
	})
	require.Equal(t, http.StatusOK, status)
	token := result["data"].(map[string]interface{})["token"].(string)
	require.NotEmpty(t, token)

	return token, adminID
}

// registerAndLogin creates a fresh account and returns its token and id.
func registerAndLogin(t *testing.T, app *fiber.App, prefix string) (string, int) {
	t.Helper()

	unique := fmt.Sprintf("%s_%d", prefix, time.Now().UnixNano())
	email := unique + "@example.com"

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/register", "", map[string]string{
		"username": unique,
		"email":    email,
		"password": "testpass",
	})
	require.Equal(t, http.StatusCreated, status)

	status, result := doJSON(t, app, http.MethodPost, "/api/v1/login", "", map[string]string{
		"email":    email,
		"password": "testpass",
	})
	require.Equal(t, http.StatusOK, status)

	data, ok := result["data"].(map[string]interface{})
	require.True(t, ok, "expected data field in login response")
	token, ok := data["token"].(string)
	require.True(t, ok, "expected token in login response")
	require.NotEmpty(t, token)

	return token, int(data["user_id"].(float64))
}
