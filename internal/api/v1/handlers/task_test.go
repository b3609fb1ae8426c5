package handlers_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskLifecycle(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "tasklife")

	// Create with only a title: status defaults to todo
	status, result := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title": "A",
	})
	require.Equal(t, http.StatusCreated, status)
	data := result["data"].(map[string]interface{})
	assert.Equal(t, "todo", data["status"])
	taskID := int(data["id"].(float64))

	// Mark it done
	status, result = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), token, map[string]interface{}{
		"status": "done",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "done", result["data"].(map[string]interface{})["status"])

	// Delete and expect a 404 on the follow-up read
	status, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), token, nil)
	require.Equal(t, http.StatusOK, status)

	status, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), token, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestTaskRequiresTitle(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "tasktitle")

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"description": "no title here",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTaskInvalidStatus(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "taskstatus")

	status, _ := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title":  "bad status",
		"status": "finished",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestTaskDueDateCoercion(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "taskdue")

	status, result := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title":    "dated",
		"due_date": "2026-09-15",
	})
	require.Equal(t, http.StatusCreated, status)
	data := result["data"].(map[string]interface{})
	require.NotNil(t, data["due_date"])
	assert.Contains(t, data["due_date"].(string), "2026-09-15")

	taskID := int(data["id"].(float64))
	status, result = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), token, map[string]interface{}{
		"due_date": "2026-10-01T12:00:00Z",
	})
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, result["data"].(map[string]interface{})["due_date"].(string), "2026-10-01")
}

func TestSubtaskListingByParent(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "tasktree")

	status, result := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
		"title": "parent",
	})
	require.Equal(t, http.StatusCreated, status)
	parentID := int(result["data"].(map[string]interface{})["id"].(float64))

	for _, title := range []string{"child one", "child two"} {
		status, _ = doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, map[string]interface{}{
			"title":  title,
			"parent": parentID,
		})
		require.Equal(t, http.StatusCreated, status)
	}

	// Subtasks show up under ?parent=
	status, result = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks?parent=%d", parentID), token, nil)
	require.Equal(t, http.StatusOK, status)
	children := result["data"].([]interface{})
	assert.Len(t, children, 2)
	for _, child := range children {
		assert.Equal(t, float64(parentID), child.(map[string]interface{})["parent"])
	}

	// The top-level listing carries only the parent
	status, result = doJSON(t, app, http.MethodGet, "/api/v1/tasks", token, nil)
	require.Equal(t, http.StatusOK, status)
	topLevel := result["data"].([]interface{})
	require.Len(t, topLevel, 1)
	assert.Equal(t, "parent", topLevel[0].(map[string]interface{})["title"])
}

func TestDeleteTaskRemovesWholeSubtree(t *testing.T) {
	app := createTestApp()
	token, _ := registerAndLogin(t, app, "taskcascade")

	newTask := func(title string, parent *int) int {
		body := map[string]interface{}{"title": title}
		if parent != nil {
			body["parent"] = *parent
		}
		status, result := doJSON(t, app, http.MethodPost, "/api/v1/tasks", token, body)
		require.Equal(t, http.StatusCreated, status)
		return int(result["data"].(map[string]interface{})["id"].(float64))
	}

	rootID := newTask("root", nil)
	childID := newTask("child", &rootID)
	grandchildID := newTask("grandchild", &childID)

	status, result := doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/tasks?id=%d", rootID), token, nil)
	require.Equal(t, http.StatusOK, status)
	deleted := result["data"].(map[string]interface{})["deleted"].([]interface{})
	assert.Len(t, deleted, 3)

	// Children and grandchildren are gone too
	for _, id := range []int{rootID, childID, grandchildID} {
		status, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks?id=%d", id), token, nil)
		assert.Equal(t, http.StatusNotFound, status)
	}
}

func TestTaskUnauthenticated(t *testing.T) {
	app := createTestApp()

	status, _ := doJSON(t, app, http.MethodGet, "/api/v1/tasks", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doJSON(t, app, http.MethodPost, "/api/v1/tasks", "", map[string]interface{}{
		"title": "should not exist",
	})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestTaskOwnership(t *testing.T) {
	app := createTestApp()
	ownerToken, _ := registerAndLogin(t, app, "taskowner")
	otherToken, _ := registerAndLogin(t, app, "taskother")

	status, result := doJSON(t, app, http.MethodPost, "/api/v1/tasks", ownerToken, map[string]interface{}{
		"title": "private",
	})
	require.Equal(t, http.StatusCreated, status)
	taskID := int(result["data"].(map[string]interface{})["id"].(float64))

	status, _ = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doJSON(t, app, http.MethodPut, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), otherToken, map[string]interface{}{
		"title": "stolen",
	})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = doJSON(t, app, http.MethodDelete, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), otherToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	// The owner still sees the unchanged task
	status, result = doJSON(t, app, http.MethodGet, fmt.Sprintf("/api/v1/tasks?id=%d", taskID), ownerToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "private", result["data"].(map[string]interface{})["title"])
}
