package commands

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/golang-jwt/jwt/v5"

	"github.com/taskdeck-dev/taskdeck/internal/cli/config"
	"github.com/taskdeck-dev/taskdeck/internal/tokenstore"
)

const (
	testEmail    = "test@example.com"
	testPassword = "TestPass123!"
)

// fakeBackend is a minimal in-memory Taskdeck API
type fakeBackend struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	access        string
	refresh       string
	profile       map[string]any
	registered    map[string]any
	markedRead    []string
	markedAll     bool
	wsFrames      []map[string]any
	rejectRefresh bool
	waitMarkRead  bool
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{
		t:       t,
		refresh: "refresh-1",
		profile: map[string]any{
			"id":         1,
			"username":   "testuser",
			"email":      testEmail,
			"first_name": "Test",
			"last_name":  "User",
			"role":       "DEV",
		},
	}
	b.access = b.mintAccess()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/accounts/auth/login/", b.login)
	mux.HandleFunc("POST /api/accounts/auth/register/", b.register)
	mux.HandleFunc("POST /api/accounts/auth/refresh/", b.refreshToken)
	mux.HandleFunc("GET /api/accounts/profile/", b.authed(b.getProfile))
	mux.HandleFunc("PATCH /api/accounts/profile/", b.authed(b.patchProfile))
	mux.HandleFunc("GET /api/projects/projects/", b.authed(b.fixture(`[{"id":1,"name":"Test Project","status":"IN_PROGRESS","priority":"HIGH","progress":40,"due_date":"2023-12-31"}]`)))
	mux.HandleFunc("GET /api/tasks/tasks/", b.authed(b.fixture(`[{"id":3,"title":"Write docs","status":"TODO","priority":"MEDIUM","project":1,"assignee":{"id":1,"username":"testuser"}}]`)))
	mux.HandleFunc("GET /api/teams/teams/", b.authed(b.fixture(`[{"id":2,"name":"Core","description":"Core team","member_count":3}]`)))
	mux.HandleFunc("GET /api/notifications/", b.authed(b.fixture(`[{"id":5,"notification_type":"TASK_ASSIGNED","title":"Assigned to Write docs","is_read":false,"created_at":"2024-01-01T00:00:00Z"}]`)))
	mux.HandleFunc("GET /api/notifications/unread-count/", b.authed(b.fixture(`{"count":1}`)))
	mux.HandleFunc("POST /api/notifications/{id}/mark_as_read/", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.markedRead = append(b.markedRead, r.PathValue("id"))
		b.mu.Unlock()
		w.Write([]byte(`{"status":"ok"}`))
	}))
	mux.HandleFunc("POST /api/notifications/mark_all_as_read/", b.authed(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.markedAll = true
		b.mu.Unlock()
		w.Write([]byte(`{"status":"ok"}`))
	}))
	mux.HandleFunc("GET /ws/notifications/", b.websocket)

	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func (b *fakeBackend) server() *config.Server {
	return &config.Server{Alias: "test-server", URL: b.srv.URL + "/api"}
}

func (b *fakeBackend) loggedInStore() tokenstore.Store {
	b.mu.Lock()
	defer b.mu.Unlock()
	store := tokenstore.NewMemoryStore()
	if err := store.SetTokens(b.access, b.refresh); err != nil {
		b.t.Fatal(err)
	}
	return store
}

// locked runs fn while holding the backend lock
func (b *fakeBackend) locked(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fn()
}

// expireAccess invalidates the current access token so the next call needs a refresh
func (b *fakeBackend) expireAccess() {
	b.mu.Lock()
	b.access = "rotated-" + b.access
	b.mu.Unlock()
}

func (b *fakeBackend) mintAccess() string {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "1",
		"typ": "access",
		"exp": time.Now().Add(15 * time.Minute).Unix(),
		"iat": time.Now().UnixNano(),
	})
	signed, err := token.SignedString([]byte("test-secret"))
	if err != nil {
		b.t.Fatal(err)
	}
	return signed
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (b *fakeBackend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		ok := r.Header.Get("Authorization") == "Bearer "+b.access
		b.mu.Unlock()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Given token not valid for any token type"})
			return
		}
		next(w, r)
	}
}

func (b *fakeBackend) fixture(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}
}

func (b *fakeBackend) login(w http.ResponseWriter, r *http.Request) {
	var creds map[string]string
	_ = json.NewDecoder(r.Body).Decode(&creds)
	if creds["email"] != testEmail || creds["password"] != testPassword {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "No active account found with the given credentials"})
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"access": b.access, "refresh": b.refresh})
}

func (b *fakeBackend) register(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	_ = json.NewDecoder(r.Body).Decode(&data)
	b.mu.Lock()
	b.registered = data
	b.mu.Unlock()
	writeJSON(w, http.StatusCreated, map[string]string{"message": "User registered successfully"})
}

func (b *fakeBackend) refreshToken(w http.ResponseWriter, r *http.Request) {
	var body map[string]string
	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rejectRefresh || body["refresh"] != b.refresh {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Token is invalid or expired"})
		return
	}
	b.access = b.mintAccess()
	writeJSON(w, http.StatusOK, map[string]string{"access": b.access})
}

func (b *fakeBackend) getProfile(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	writeJSON(w, http.StatusOK, b.profile)
}

func (b *fakeBackend) patchProfile(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	_ = json.NewDecoder(r.Body).Decode(&patch)
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range patch {
		b.profile[k] = v
	}
	writeJSON(w, http.StatusOK, b.profile)
}

func (b *fakeBackend) websocket(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	ok := r.URL.Query().Get("token") == b.access
	b.mu.Unlock()
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	ctx := r.Context()

	_ = wsjson.Write(ctx, conn, map[string]any{
		"type": "notification",
		"notification": map[string]any{
			"id":                5,
			"notification_type": "TASK_ASSIGNED",
			"title":             "Assigned to Write docs",
			"message":           "testuser assigned you a task",
		},
	})

	b.mu.Lock()
	waitMarkRead := b.waitMarkRead
	b.mu.Unlock()
	if waitMarkRead {
		var frame map[string]any
		if err := wsjson.Read(ctx, conn, &frame); err == nil {
			b.mu.Lock()
			b.wsFrames = append(b.wsFrames, frame)
			b.mu.Unlock()
		}
	}

	conn.Close(websocket.StatusNormalClosure, "done")
}

func containsAll(t *testing.T, out string, want ...string) {
	t.Helper()
	for _, w := range want {
		if !strings.Contains(out, w) {
			t.Errorf("expected output to contain %q, got:\n%s", w, out)
		}
	}
}
