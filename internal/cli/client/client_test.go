package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck-dev/taskdeck/internal/apiclient"
	"github.com/taskdeck-dev/taskdeck/internal/tokenstore"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
	Auth   string
}

// newTestClient returns a client whose server answers every request with
// response and records what it received.
func newTestClient(t *testing.T, status int, response string) (*Client, *recordedRequest) {
	t.Helper()
	rec := &recordedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.Method = r.Method
		rec.Path = r.URL.Path
		rec.Query = r.URL.RawQuery
		rec.Auth = r.Header.Get("Authorization")
		rec.Body = nil
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &rec.Body))
		}
		w.WriteHeader(status)
		w.Write([]byte(response))
	}))
	t.Cleanup(srv.Close)

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	return New(apiclient.New(srv.URL+"/api", store)), rec
}

func TestListProjects(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `[{"id":1,"name":"Test Project","status":"IN_PROGRESS","owner":{"id":1,"username":"testuser"},"manager":null,"due_date":"2023-12-31"}]`)

	projects, err := c.ListProjects(context.Background(), ProjectFilters{Status: "IN_PROGRESS", Search: "test"})
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, "Test Project", projects[0].Name)
	assert.Equal(t, "testuser", projects[0].Owner.Username)
	assert.Nil(t, projects[0].Manager)
	require.NotNil(t, projects[0].DueDate)
	assert.Equal(t, "2023-12-31", *projects[0].DueDate)

	assert.Equal(t, http.MethodGet, rec.Method)
	assert.Equal(t, "/api/projects/projects/", rec.Path)
	assert.Equal(t, "search=test&status=IN_PROGRESS", rec.Query)
	assert.Equal(t, "Bearer A1", rec.Auth)
}

func TestProjectMembers_MissingMembers(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"id":7,"name":"No members"}`)

	members, err := c.ListProjectMembers(context.Background(), 7)
	require.NoError(t, err)
	assert.Empty(t, members)
	assert.NotNil(t, members)
	assert.Equal(t, "/api/projects/projects/7/", rec.Path)
}

func TestUpdateProject(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"id":3,"name":"Renamed"}`)

	project, err := c.UpdateProject(context.Background(), 3, ProjectInput{Name: "Renamed"})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", project.Name)
	assert.Equal(t, http.MethodPatch, rec.Method)
	assert.Equal(t, "/api/projects/projects/3/", rec.Path)
	assert.Equal(t, map[string]any{"name": "Renamed"}, rec.Body)
}

func TestListTasks(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `[{"id":1,"title":"Test Task","status":"TODO","priority":"MEDIUM","project":1,"assignee":null}]`)

	tasks, err := c.ListTasks(context.Background(), 1, TaskFilters{Priority: "MEDIUM", Assignee: 4})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "Test Task", tasks[0].Title)
	assert.Nil(t, tasks[0].Assignee)

	assert.Equal(t, "/api/tasks/tasks/", rec.Path)
	assert.Equal(t, "assignee=4&priority=MEDIUM&project=1", rec.Query)
}

func TestCreateTaskList(t *testing.T) {
	c, rec := newTestClient(t, http.StatusCreated, `{"id":9,"project":2,"name":"Backlog","tasks":[]}`)

	list, err := c.CreateTaskList(context.Background(), 2, "Backlog")
	require.NoError(t, err)
	assert.Equal(t, int64(9), list.ID)
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/api/tasks/task-lists/", rec.Path)
	assert.Equal(t, map[string]any{"project": float64(2), "name": "Backlog"}, rec.Body)
}

func TestDeleteTask(t *testing.T) {
	c, rec := newTestClient(t, http.StatusNoContent, ``)

	require.NoError(t, c.DeleteTask(context.Background(), 5))
	assert.Equal(t, http.MethodDelete, rec.Method)
	assert.Equal(t, "/api/tasks/tasks/5/", rec.Path)
}

func TestTeamInvitations(t *testing.T) {
	c, rec := newTestClient(t, http.StatusCreated, `{"id":11,"team":{"id":1,"name":"Core"},"role":"MEMBER","status":"PENDING"}`)

	inv, err := c.InviteToTeam(context.Background(), 1, "new@example.com", "MEMBER")
	require.NoError(t, err)
	assert.Equal(t, "PENDING", inv.Status)
	assert.Equal(t, "Core", inv.Team.Name)
	assert.Equal(t, "/api/teams/team-invitations/", rec.Path)
	assert.Equal(t, map[string]any{"team": float64(1), "invited_user_email": "new@example.com", "role": "MEMBER"}, rec.Body)

	require.NoError(t, c.AcceptInvitation(context.Background(), 11))
	assert.Equal(t, "/api/teams/team-invitations/11/accept/", rec.Path)
	assert.Nil(t, rec.Body)

	require.NoError(t, c.DeclineInvitation(context.Background(), 11))
	assert.Equal(t, "/api/teams/team-invitations/11/decline/", rec.Path)
}

func TestNotifications(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `[{"id":1,"title":"Assigned","is_read":false,"read_at":null}]`)

	unread := false
	notifications, err := c.ListNotifications(context.Background(), NotificationFilters{IsRead: &unread})
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "is_read=false", rec.Query)

	require.NoError(t, c.MarkNotificationRead(context.Background(), 1))
	assert.Equal(t, http.MethodPost, rec.Method)
	assert.Equal(t, "/api/notifications/1/mark_as_read/", rec.Path)

	require.NoError(t, c.MarkAllNotificationsRead(context.Background()))
	assert.Equal(t, "/api/notifications/mark_all_as_read/", rec.Path)

	require.NoError(t, c.DeleteNotification(context.Background(), 1))
	assert.Equal(t, http.MethodDelete, rec.Method)
	assert.Equal(t, "/api/notifications/1/", rec.Path)
}

func TestUnreadCount(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"count":4}`)

	count, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, count)
	assert.Equal(t, "/api/notifications/unread-count/", rec.Path)
}

func TestListError(t *testing.T) {
	c, _ := newTestClient(t, http.StatusForbidden, `{"detail":"forbidden"}`)

	_, err := c.ListTeams(context.Background())
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, apiclient.StatusCode(err))
	assert.Contains(t, err.Error(), "failed to list /teams/teams/")
}
