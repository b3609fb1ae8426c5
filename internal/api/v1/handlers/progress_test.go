package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createProgress(t *testing.T, app *fiber.App, token string, day int, title string) int {
	t.Helper()
	status, result := doJSON(t, app, http.MethodPost, "/api/v1/progress", token, map[string]interface{}{
		"day_number": day,
		"title":      title,
	})
	require.Equal(t, http.StatusCreated, status)
	return int(result["data"].(map[string]interface{})["id"].(float64))
}

func TestProgressListSortedByDay(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "progsort")

	// Created out of order on purpose
	createProgress(t, app, token, 1, "Day 1")
	createProgress(t, app, token, 0, "Day 0")

	status, result := doJSON(t, app, http.MethodGet, "/api/v1/progress", token, nil)
	require.Equal(t, http.StatusOK, status)
	entries := result["data"].([]interface{})
	require.Len(t, entries, 2)
	assert.Equal(t, "Day 0", entries[0].(map[string]interface{})["title"])
	assert.Equal(t, "Day 1", entries[1].(map[string]interface{})["title"])
}

func TestProgressContentStartsEmpty(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "progempty")

	status, result := doJSON(t, app, http.MethodPost, "/api/v1/progress", token, map[string]interface{}{
		"day_number": 3,
		"title":      "Day 3",
	})
	require.Equal(t, http.StatusCreated, status)
	data := result["data"].(map[string]interface{})
	content, ok := data["content"].([]interface{})
	require.True(t, ok, "expected content array")
	assert.Empty(t, content)
}

func TestProgressContentOverwrite(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "progbullets")

	progressID := createProgress(t, app, token, 5, "Day 5")

	// The client sends the whole bullet list back after local edits
	status, result := doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/progress?id=%d", progressID), token, map[string]interface{}{
		"content": []string{"wrote tests", "fixed the build"},
	})
	require.Equal(t, http.StatusOK, status)
	content := result["data"].(map[string]interface{})["content"].([]interface{})
	require.Len(t, content, 2)
	assert.Equal(t, "wrote tests", content[0])
	assert.Equal(t, "fixed the build", content[1])

	// Updating another field leaves the bullets alone
	status, result = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/progress?id=%d", progressID), token, map[string]interface{}{
		"title": "Day 5 (revised)",
	})
	require.Equal(t, http.StatusOK, status)
	data := result["data"].(map[string]interface{})
	assert.Equal(t, "Day 5 (revised)", data["title"])
	assert.Len(t, data["content"].([]interface{}), 2)

	// An explicit empty list clears the bullets
	status, result = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/progress?id=%d", progressID), token, map[string]interface{}{
		"content": []string{},
	})
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, result["data"].(map[string]interface{})["content"].([]interface{}))
}

func TestProgressRequiresDayAndTitle(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "progvalid")

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/progress", token, map[string]interface{}{
		"title": "no day",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/progress", token, map[string]interface{}{
		"day_number": 2,
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestProgressDelete(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "progdelete")

	progressID := createProgress(t, app, token, 7, "Day 7")

	status, _ := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/progress?id=%d", progressID), token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/progress?id=%d", progressID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestProgressOwnership(t *testing.T) {
	app := createTestApp()
	ownerToken, _ := registerAndLogin(t, app, "progowner")
	otherToken, _ := registerAndLogin(t, app, "progother")

	progressID := createProgress(t, app, ownerToken, 9, "Day 9")

	status, _ := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/progress?id=%d", progressID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/progress?id=%d", progressID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// Another user's listing does not leak the entry
	status, result := doJSON(t, app, http.MethodGet, "/api/v1/progress", otherToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Empty(t, result["data"].([]interface{}))
}

func TestProgressUnauthenticated(t *testing.T) {
	app := createTestApp()

	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/progress", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/progress", "", map[string]interface{}{
		"day_number": 1,
		"title":      "nope",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}
