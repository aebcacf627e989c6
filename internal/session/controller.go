// Package session tracks who is logged in and mediates every operation that
// changes it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/taskdeck-dev/taskdeck/internal/account"
	"github.com/taskdeck-dev/taskdeck/internal/tokenstore"
)

// State is the controller's position in the session lifecycle
type State int

const (
	Bootstrapping State = iota
	Anonymous
	Authenticated
)

func (s State) String() string {
	switch s {
	case Bootstrapping:
		return "bootstrapping"
	case Anonymous:
		return "anonymous"
	case Authenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

var (
	// ErrSessionLoading is returned by Authorize before Bootstrap has finished
	ErrSessionLoading = errors.New("session is still loading")
	// ErrNotAuthenticated is returned by Authorize when nobody is logged in
	ErrNotAuthenticated = errors.New("not authenticated")
)

// AccountAPI is the subset of account.API the controller depends on
type AccountAPI interface {
	Login(ctx context.Context, creds account.Credentials) (*account.Tokens, error)
	Register(ctx context.Context, data account.RegisterData) error
	CurrentUser(ctx context.Context) (*account.Profile, error)
	UpdateProfile(ctx context.Context, update account.ProfileUpdate) (*account.Profile, error)
}

// Snapshot is a point-in-time copy of the controller state
type Snapshot struct {
	State   State
	User    *account.Profile
	Loading bool
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger used for state transitions
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// Controller owns the authenticated-identity view of the application
type Controller struct {
	api    AccountAPI
	store  tokenstore.Store
	logger zerolog.Logger

	mu        sync.RWMutex
	state     State
	user      *account.Profile
	listeners map[int]func(Snapshot)
	nextID    int
}

// NewController creates a controller in the Bootstrapping state
func NewController(api AccountAPI, store tokenstore.Store, opts ...Option) *Controller {
	c := &Controller{
		api:       api,
		store:     store,
		logger:    zerolog.Nop(),
		state:     Bootstrapping,
		listeners: make(map[int]func(Snapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the current state
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	var user *account.Profile
	if c.user != nil {
		u := *c.user
		user = &u
	}
	return Snapshot{
		State:   c.state,
		User:    user,
		Loading: c.state == Bootstrapping,
	}
}

// User returns the cached profile, or nil when anonymous
func (c *Controller) User() *account.Profile {
	return c.Snapshot().User
}

// IsAuthenticated reports whether a user is logged in
func (c *Controller) IsAuthenticated() bool {
	return c.Snapshot().State == Authenticated
}

// Bootstrap resolves the initial state from the stored tokens. A stored token
// whose profile fetch fails is treated as stale and cleared.
func (c *Controller) Bootstrap(ctx context.Context) error {
	access, err := c.store.AccessToken()
	if err != nil {
		c.transition(Anonymous, nil)
		return fmt.Errorf("failed to load access token: %w", err)
	}
	if access == "" {
		c.transition(Anonymous, nil)
		return nil
	}

	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		c.logger.Debug().Err(err).Msg("Stored session is no longer valid")
		c.clearStore()
		c.transition(Anonymous, nil)
		return err
	}

	c.transition(Authenticated, user)
	return nil
}

// Login authenticates with email and password. Either both the token pair and
// the profile end up in place, or neither does.
func (c *Controller) Login(ctx context.Context, email, password string) (*account.Profile, error) {
	tokens, err := c.api.Login(ctx, account.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	if err := c.store.SetTokens(tokens.Access, tokens.Refresh); err != nil {
		return nil, fmt.Errorf("failed to store tokens: %w", err)
	}

	user, err := c.api.CurrentUser(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Profile fetch after login failed, rolling back tokens")
		c.clearStore()
		c.transition(Anonymous, nil)
		return nil, err
	}

	c.transition(Authenticated, user)
	c.logger.Info().Str("username", user.Username).Msg("Logged in")
	return user, nil
}

// Register creates an account. The caller must still Login afterwards.
func (c *Controller) Register(ctx context.Context, data account.RegisterData) error {
	return c.api.Register(ctx, data)
}

// Logout clears the stored tokens and resets to Anonymous without any network call
func (c *Controller) Logout() error {
	err := c.store.Clear()
	c.transition(Anonymous, nil)
	if err != nil {
		return fmt.Errorf("failed to clear tokens: %w", err)
	}
	return nil
}

// UpdateProfile patches the profile and replaces the cached user
func (c *Controller) UpdateProfile(ctx context.Context, update account.ProfileUpdate) (*account.Profile, error) {
	user, err := c.api.UpdateProfile(ctx, update)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.state != Authenticated {
		c.mu.Unlock()
		return user, nil
	}
	u := *user
	c.user = &u
	snap := c.snapshotLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	notify(listeners, snap)
	return user, nil
}

// HandleRefreshFailure is the client's refresh-failure hook. The client has
// already cleared the store.
func (c *Controller) HandleRefreshFailure(err error) {
	if c.transitionIf(Authenticated, Anonymous) {
		c.logger.Warn().Err(err).Msg("Session expired")
	}
}

// Authorize guards operations that need a logged-in user
func (c *Controller) Authorize() (*account.Profile, error) {
	snap := c.Snapshot()
	switch snap.State {
	case Bootstrapping:
		return nil, ErrSessionLoading
	case Authenticated:
		return snap.User, nil
	default:
		return nil, ErrNotAuthenticated
	}
}

// Subscribe registers fn to be called after every state change. The returned
// function removes it.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.listeners, id)
			c.mu.Unlock()
		})
	}
}

func (c *Controller) transition(state State, user *account.Profile) {
	c.mu.Lock()
	prev := c.state
	c.setLocked(state, user)
	snap := c.snapshotLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.changed(prev, state, listeners, snap)
}

// transitionIf moves from one state to another and drops the user, only if
// the controller is still in from. The check and the move share one lock.
func (c *Controller) transitionIf(from, to State) bool {
	c.mu.Lock()
	if c.state != from {
		c.mu.Unlock()
		return false
	}
	c.setLocked(to, nil)
	snap := c.snapshotLocked()
	listeners := c.listenersLocked()
	c.mu.Unlock()

	c.changed(from, to, listeners, snap)
	return true
}

func (c *Controller) setLocked(state State, user *account.Profile) {
	c.state = state
	if user != nil {
		u := *user
		c.user = &u
	} else {
		c.user = nil
	}
}

func (c *Controller) changed(prev, state State, listeners []func(Snapshot), snap Snapshot) {
	if prev != state {
		c.logger.Debug().Stringer("from", prev).Stringer("to", state).Msg("Session state changed")
	}
	notify(listeners, snap)
}

func (c *Controller) listenersLocked() []func(Snapshot) {
	out := make([]func(Snapshot), 0, len(c.listeners))
	for _, fn := range c.listeners {
		out = append(out, fn)
	}
	return out
}

func (c *Controller) clearStore() {
	if err := c.store.Clear(); err != nil {
		c.logger.Error().Err(err).Msg("Failed to clear stored tokens")
	}
}

func notify(listeners []func(Snapshot), snap Snapshot) {
	for _, fn := range listeners {
		fn(snap)
	}
}
