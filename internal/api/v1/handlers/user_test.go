package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUserSelf(t *testing.T) {
	app := createTestApp()
	token, userID := registerAndLogin(t, app, "userself")

	status, result := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", userID), token, nil)
	require.Equal(t, http.StatusOK, status)
	data := result["data"].(map[string]interface{})
	assert.Equal(t, float64(userID), data["id"])
	assert.Equal(t, "member", data["role"])
}

func TestGetUserForbiddenForOthers(t *testing.T) {
	app := createTestApp()
	_, targetID := registerAndLogin(t, app, "usertarget")
	otherToken, _ := registerAndLogin(t, app, "userother")

	status, _ := doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/users/%d", targetID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)
}

func TestListUsersAdminOnly(t *testing.T) {
	app := createTestApp()
	memberToken, _ := registerAndLogin(t, app, "userlist")

	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/users", memberToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	adminToken, _ := createTestAdmin(t, app)
	status, result := doJSON(t, app, http.MethodGet, "/api/v1/users", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, result["data"].([]interface{}))
}

func TestAdminCanReadAnyTask(t *testing.T) {
	app := createTestApp()
	memberToken, _ := registerAndLogin(t, app, "membertask")
	adminToken, _ := createTestAdmin(t, app)

	status, result := doJSON(t, app, http.MethodPost, "/api/v1/tasks", memberToken, map[string]interface{}{
		"title": "member's task",
	})
	require.Equal(t, http.StatusCreated, status)
	taskID := int(result["data"].(map[string]interface{})["id"].(float64))

	status, result = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "member's task", result["data"].(map[string]interface{})["title"])
}

func TestUpdateUser(t *testing.T) {
	app := createTestApp()
	token, userID := registerAndLogin(t, app, "userupdate")

	status, result := doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/users/%d", userID), token, map[string]string{
		"username": fmt.Sprintf("renamed_%d", userID),
	})
	require.Equal(t, http.StatusOK, status)
	data := result["data"].(map[string]interface{})
	assert.Equal(t, fmt.Sprintf("renamed_%d", userID), data["username"])
}

func TestDeleteUserRevokesAccess(t *testing.T) {
	app := createTestApp()
	token, userID := registerAndLogin(t, app, "userdelete")

	status, _ := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/users/%d", userID), token, nil)
	require.Equal(t, http.StatusOK, status)

	// The token outlives the account but the account check rejects it
	status, _ = doJSON(t, app, http.MethodGet, "/api/v1/tasks", token, nil)
	assert.Equal(t, http.StatusUnauthorized, status)
}
