package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck-dev/taskdeck/internal/models"
)

func (ts *testServer) notify(token string, recipient uint, title string) models.Notification {
	ts.t.Helper()
	status, body := ts.do(http.MethodPost, "/api/notifications/", token, map[string]any{
		"recipient":         recipient,
		"notification_type": models.NotificationTaskAssigned,
		"title":             title,
		"message":           "details",
	})
	require.Equal(ts.t, http.StatusCreated, status, string(body))

	var n models.Notification
	require.NoError(ts.t, json.Unmarshal(body, &n))
	return n
}

func (ts *testServer) listNotifications(token, query string) []models.Notification {
	ts.t.Helper()
	status, body := ts.do(http.MethodGet, "/api/notifications/"+query, token, nil)
	require.Equal(ts.t, http.StatusOK, status, string(body))

	var list []models.Notification
	require.NoError(ts.t, json.Unmarshal(body, &list))
	return list
}

func (ts *testServer) unread(token string) int {
	ts.t.Helper()
	status, body := ts.do(http.MethodGet, "/api/notifications/unread-count/", token, nil)
	require.Equal(ts.t, http.StatusOK, status)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(ts.t, json.Unmarshal(body, &resp))
	return resp.Count
}

func TestNotifications_Lifecycle(t *testing.T) {
	ts := newTestServer(t)
	tokens := ts.newUser("kim")

	first := ts.notify(tokens.Access, 0, "first")
	second := ts.notify(tokens.Access, 0, "second")
	assert.False(t, first.IsRead)
	assert.Equal(t, 2, ts.unread(tokens.Access))

	list := ts.listNotifications(tokens.Access, "")
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Title, "newest first")

	status, _ := ts.do(http.MethodPost, fmt.Sprintf("/api/notifications/%d/mark_as_read/", first.ID), tokens.Access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 1, ts.unread(tokens.Access))

	read := ts.listNotifications(tokens.Access, "?is_read=true")
	require.Len(t, read, 1)
	assert.Equal(t, first.ID, read[0].ID)
	assert.NotNil(t, read[0].ReadAt)

	unread := ts.listNotifications(tokens.Access, "?is_read=false")
	require.Len(t, unread, 1)
	assert.Equal(t, second.ID, unread[0].ID)

	status, _ = ts.do(http.MethodPost, "/api/notifications/mark_all_as_read/", tokens.Access, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, 0, ts.unread(tokens.Access))

	status, _ = ts.do(http.MethodDelete, fmt.Sprintf("/api/notifications/%d/", first.ID), tokens.Access, nil)
	assert.Equal(t, http.StatusNoContent, status)
	assert.Len(t, ts.listNotifications(tokens.Access, ""), 1)
}

func TestNotifications_ScopedToRecipient(t *testing.T) {
	ts := newTestServer(t)
	owner := ts.newUser("liam")
	other := ts.newUser("mona")

	var liam models.User
	require.NoError(t, ts.GetDB().Where("username = ?", "liam").First(&liam).Error)

	n := ts.notify(other.Access, liam.ID, "for liam")
	assert.Equal(t, liam.ID, n.RecipientID)

	assert.Empty(t, ts.listNotifications(other.Access, ""))
	assert.Len(t, ts.listNotifications(owner.Access, ""), 1)

	status, _ := ts.do(http.MethodPost, fmt.Sprintf("/api/notifications/%d/mark_as_read/", n.ID), other.Access, nil)
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = ts.do(http.MethodDelete, fmt.Sprintf("/api/notifications/%d/", n.ID), other.Access, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestNotifications_BadInput(t *testing.T) {
	ts := newTestServer(t)
	tokens := ts.newUser("nina")

	status, _ := ts.do(http.MethodGet, "/api/notifications/?is_read=maybe", tokens.Access, nil)
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(http.MethodPost, "/api/notifications/", tokens.Access, map[string]any{
		"notification_type": "UNKNOWN", "title": "x",
	})
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = ts.do(http.MethodPost, "/api/notifications/", tokens.Access, map[string]any{
		"recipient": 999, "notification_type": models.NotificationSystem, "title": "x",
	})
	assert.Equal(t, http.StatusBadRequest, status)
}
