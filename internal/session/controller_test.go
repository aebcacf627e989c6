package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskdeck-dev/taskdeck/internal/account"
	"github.com/taskdeck-dev/taskdeck/internal/apiclient"
	"github.com/taskdeck-dev/taskdeck/internal/tokenstore"
)

type fakeAccountAPI struct {
	loginFn         func(ctx context.Context, creds account.Credentials) (*account.Tokens, error)
	registerFn      func(ctx context.Context, data account.RegisterData) error
	currentUserFn   func(ctx context.Context) (*account.Profile, error)
	updateProfileFn func(ctx context.Context, update account.ProfileUpdate) (*account.Profile, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeAccountAPI) record(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
}

func (f *fakeAccountAPI) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeAccountAPI) Login(ctx context.Context, creds account.Credentials) (*account.Tokens, error) {
	f.record("login")
	if f.loginFn == nil {
		return nil, errors.New("unexpected login")
	}
	return f.loginFn(ctx, creds)
}

func (f *fakeAccountAPI) Register(ctx context.Context, data account.RegisterData) error {
	f.record("register")
	if f.registerFn == nil {
		return errors.New("unexpected register")
	}
	return f.registerFn(ctx, data)
}

func (f *fakeAccountAPI) CurrentUser(ctx context.Context) (*account.Profile, error) {
	f.record("current_user")
	if f.currentUserFn == nil {
		return nil, errors.New("unexpected profile fetch")
	}
	return f.currentUserFn(ctx)
}

func (f *fakeAccountAPI) UpdateProfile(ctx context.Context, update account.ProfileUpdate) (*account.Profile, error) {
	f.record("update_profile")
	if f.updateProfileFn == nil {
		return nil, errors.New("unexpected profile update")
	}
	return f.updateProfileFn(ctx, update)
}

func profileOf(id int64, username string) func(context.Context) (*account.Profile, error) {
	return func(context.Context) (*account.Profile, error) {
		return &account.Profile{ID: id, Username: username}, nil
	}
}

func assertEmptyStore(t *testing.T, store tokenstore.Store) {
	t.Helper()
	access, err := store.AccessToken()
	require.NoError(t, err)
	refresh, err := store.RefreshToken()
	require.NoError(t, err)
	assert.Empty(t, access)
	assert.Empty(t, refresh)
}

func TestNewController_StartsBootstrapping(t *testing.T) {
	c := NewController(&fakeAccountAPI{}, tokenstore.NewMemoryStore())

	snap := c.Snapshot()
	assert.Equal(t, Bootstrapping, snap.State)
	assert.True(t, snap.Loading)
	assert.Nil(t, snap.User)

	_, err := c.Authorize()
	assert.ErrorIs(t, err, ErrSessionLoading)
}

func TestBootstrap_NoToken(t *testing.T) {
	api := &fakeAccountAPI{}
	c := NewController(api, tokenstore.NewMemoryStore())

	require.NoError(t, c.Bootstrap(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.False(t, snap.Loading)
	assert.Empty(t, api.Calls(), "no profile fetch without a token")

	_, err := c.Authorize()
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestBootstrap_TokenAndProfile(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	c := NewController(&fakeAccountAPI{currentUserFn: profileOf(1, "alice")}, store)

	require.NoError(t, c.Bootstrap(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	assert.False(t, snap.Loading)
	require.NotNil(t, snap.User)
	assert.Equal(t, "alice", snap.User.Username)

	user, err := c.Authorize()
	require.NoError(t, err)
	assert.Equal(t, int64(1), user.ID)
}

func TestBootstrap_ProfileFetchFails(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("stale", "R1"))
	fetchErr := &apiclient.HTTPError{StatusCode: http.StatusInternalServerError}
	c := NewController(&fakeAccountAPI{
		currentUserFn: func(context.Context) (*account.Profile, error) { return nil, fetchErr },
	}, store)

	err := c.Bootstrap(context.Background())
	assert.Same(t, fetchErr, err, "errors propagate untranslated")

	snap := c.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.False(t, snap.Loading)
	assertEmptyStore(t, store)
}

func TestLogin_StoresTokensAndProfile(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	api := &fakeAccountAPI{
		loginFn: func(_ context.Context, creds account.Credentials) (*account.Tokens, error) {
			assert.Equal(t, account.Credentials{Email: "a@b.com", Password: "pw"}, creds)
			return &account.Tokens{Access: "A1", Refresh: "R1"}, nil
		},
		currentUserFn: profileOf(2, "bob"),
	}
	c := NewController(api, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	user, err := c.Login(context.Background(), "a@b.com", "pw")
	require.NoError(t, err)
	assert.Equal(t, "bob", user.Username)

	access, _ := store.AccessToken()
	refresh, _ := store.RefreshToken()
	assert.Equal(t, "A1", access)
	assert.Equal(t, "R1", refresh)

	snap := c.Snapshot()
	assert.Equal(t, Authenticated, snap.State)
	assert.Equal(t, "bob", snap.User.Username)
	assert.Equal(t, []string{"login", "current_user"}, api.Calls())
}

func TestLogin_ProfileFailureRollsBack(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	fetchErr := &apiclient.NetworkError{Method: http.MethodGet, URL: "http://x/accounts/profile/", Err: errors.New("connection reset")}
	c := NewController(&fakeAccountAPI{
		loginFn: func(context.Context, account.Credentials) (*account.Tokens, error) {
			return &account.Tokens{Access: "A1", Refresh: "R1"}, nil
		},
		currentUserFn: func(context.Context) (*account.Profile, error) { return nil, fetchErr },
	}, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	_, err := c.Login(context.Background(), "a@b.com", "pw")
	assert.Same(t, fetchErr, err)

	assertEmptyStore(t, store)
	assert.Equal(t, Anonymous, c.Snapshot().State)
	assert.Nil(t, c.User())
}

func TestLogin_InvalidCredentials(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	loginErr := &apiclient.HTTPError{StatusCode: http.StatusUnauthorized, Body: []byte(`{"detail":"Invalid credentials"}`)}
	api := &fakeAccountAPI{
		loginFn: func(context.Context, account.Credentials) (*account.Tokens, error) { return nil, loginErr },
	}
	c := NewController(api, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	_, err := c.Login(context.Background(), "a@b.com", "bad")
	assert.Same(t, loginErr, err)
	assert.Equal(t, Anonymous, c.Snapshot().State)
	assert.Equal(t, []string{"login"}, api.Calls())
	assertEmptyStore(t, store)
}

func TestRegister_DoesNotChangeState(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	var got account.RegisterData
	c := NewController(&fakeAccountAPI{
		registerFn: func(_ context.Context, data account.RegisterData) error {
			got = data
			return nil
		},
	}, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	require.NoError(t, c.Register(context.Background(), account.RegisterData{Username: "carol", Email: "c@example.com"}))
	assert.Equal(t, "carol", got.Username)
	assert.Equal(t, Anonymous, c.Snapshot().State)
	assert.False(t, tokenstore.HasSession(store))
}

func TestLogout(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	api := &fakeAccountAPI{currentUserFn: profileOf(1, "alice")}
	c := NewController(api, store)
	require.NoError(t, c.Bootstrap(context.Background()))
	require.Equal(t, Authenticated, c.Snapshot().State)

	require.NoError(t, c.Logout())

	snap := c.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.User)
	assertEmptyStore(t, store)
	assert.Equal(t, []string{"current_user"}, api.Calls(), "logout makes no network call")
}

func TestUpdateProfile(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	c := NewController(&fakeAccountAPI{
		currentUserFn: profileOf(1, "alice"),
		updateProfileFn: func(_ context.Context, update account.ProfileUpdate) (*account.Profile, error) {
			return &account.Profile{ID: 1, Username: "alice", FirstName: *update.FirstName}, nil
		},
	}, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	first := "Alice"
	_, err := c.UpdateProfile(context.Background(), account.ProfileUpdate{FirstName: &first})
	require.NoError(t, err)
	assert.Equal(t, "Alice", c.User().FirstName)
}

func TestHandleRefreshFailure(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	c := NewController(&fakeAccountAPI{currentUserFn: profileOf(1, "alice")}, store)

	// Ignored while bootstrapping
	c.HandleRefreshFailure(errors.New("refresh failed"))
	assert.Equal(t, Bootstrapping, c.Snapshot().State)

	require.NoError(t, c.Bootstrap(context.Background()))
	c.HandleRefreshFailure(errors.New("refresh failed"))

	snap := c.Snapshot()
	assert.Equal(t, Anonymous, snap.State)
	assert.Nil(t, snap.User)
}

func TestHandleRefreshFailure_ConcurrentCallsEndSessionOnce(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	c := NewController(&fakeAccountAPI{currentUserFn: profileOf(1, "alice")}, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	var (
		mu   sync.Mutex
		seen []State
	)
	c.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s.State)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.HandleRefreshFailure(errors.New("refresh failed"))
		}()
	}
	wg.Wait()

	assert.Equal(t, Anonymous, c.Snapshot().State)
	assert.Equal(t, []State{Anonymous}, seen)

	// Already anonymous: nothing to end, nobody notified
	c.HandleRefreshFailure(errors.New("refresh failed"))
	assert.Equal(t, []State{Anonymous}, seen)
}

func TestHandleRefreshFailure_RacingLoginStaysConsistent(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	api := &fakeAccountAPI{
		loginFn: func(context.Context, account.Credentials) (*account.Tokens, error) {
			return &account.Tokens{Access: "A1", Refresh: "R1"}, nil
		},
		currentUserFn: profileOf(1, "alice"),
	}
	c := NewController(api, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	var (
		mu   sync.Mutex
		seen []Snapshot
	)
	c.Subscribe(func(s Snapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = c.Login(context.Background(), "a@b.com", "pw")
	}()
	go func() {
		defer wg.Done()
		for range 50 {
			c.HandleRefreshFailure(errors.New("refresh failed"))
		}
	}()
	wg.Wait()

	snap := c.Snapshot()
	if snap.State == Authenticated {
		require.NotNil(t, snap.User)
		assert.Equal(t, "alice", snap.User.Username)
	} else {
		assert.Equal(t, Anonymous, snap.State)
		assert.Nil(t, snap.User)
	}

	// One login means one session to end, so at most one Anonymous notification
	mu.Lock()
	defer mu.Unlock()
	counts := map[State]int{}
	for i, s := range seen {
		counts[s.State]++
		assert.Equal(t, s.State == Authenticated, s.User != nil, "notification %d", i)
	}
	assert.Equal(t, 1, counts[Authenticated])
	assert.LessOrEqual(t, counts[Anonymous], 1)
}

func TestSubscribe(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	c := NewController(&fakeAccountAPI{currentUserFn: profileOf(1, "alice")}, store)

	var seen []State
	unsubscribe := c.Subscribe(func(s Snapshot) {
		seen = append(seen, s.State)
	})

	require.NoError(t, c.Bootstrap(context.Background()))
	require.NoError(t, c.Logout())
	unsubscribe()
	unsubscribe()
	require.NoError(t, c.Logout())

	assert.Equal(t, []State{Authenticated, Anonymous}, seen)
}

func TestSnapshot_ReturnsCopy(t *testing.T) {
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	c := NewController(&fakeAccountAPI{currentUserFn: profileOf(1, "alice")}, store)
	require.NoError(t, c.Bootstrap(context.Background()))

	c.User().Username = "mallory"
	assert.Equal(t, "alice", c.User().Username)
}

// Wires the controller to a real client whose refresh fails mid-session.
func TestController_RefreshFailureThroughClient(t *testing.T) {
	var profileCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case account.ProfilePath:
			profileCalls++
			if profileCalls == 1 && r.Header.Get("Authorization") == "Bearer A1" {
				w.Write([]byte(`{"id":1,"username":"alice"}`))
				return
			}
			w.WriteHeader(http.StatusUnauthorized)
		case apiclient.DefaultRefreshPath:
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"detail":"Token is invalid or expired"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.SetTokens("A1", "R1"))
	client := apiclient.New(srv.URL, store)
	c := NewController(account.New(client), store)
	client.SetOnRefreshFailure(c.HandleRefreshFailure)

	require.NoError(t, c.Bootstrap(context.Background()))
	require.Equal(t, Authenticated, c.Snapshot().State)

	_, err := account.New(client).CurrentUser(context.Background())
	require.Error(t, err)
	assert.True(t, apiclient.IsRefreshFailure(err))

	assert.Equal(t, Anonymous, c.Snapshot().State)
	assertEmptyStore(t, store)
}
