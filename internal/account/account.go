// Package account wraps the authentication and profile endpoints.
package account

import (
	"context"
	"fmt"
	"net/http"

	"github.com/taskdeck-dev/taskdeck/internal/apiclient"
)

// Endpoint paths relative to the API base URL
const (
	LoginPath    = "/accounts/auth/login/"
	RegisterPath = "/accounts/auth/register/"
	ProfilePath  = "/accounts/profile/"
)

// Credentials represents the login request body
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Tokens is the token pair returned by the login endpoint
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Profile represents the current user's profile
type Profile struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

// FullName joins first and last name, falling back to the username
func (p *Profile) FullName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	case p.LastName != "":
		return p.LastName
	default:
		return p.Username
	}
}

// RegisterData represents the registration request body
type RegisterData struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Password2 string `json:"password2"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

// ProfileUpdate carries the fields to change; nil fields are left untouched
type ProfileUpdate struct {
	Username  *string `json:"username,omitempty"`
	Email     *string `json:"email,omitempty"`
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Role      *string `json:"role,omitempty"`
}

// Empty reports whether the update changes nothing
func (u ProfileUpdate) Empty() bool {
	return u.Username == nil && u.Email == nil && u.FirstName == nil && u.LastName == nil && u.Role == nil
}

// API calls the account endpoints through the authenticated client
type API struct {
	client *apiclient.Client
}

// New creates an account API on top of client
func New(client *apiclient.Client) *API {
	return &API{client: client}
}

// Login exchanges credentials for a token pair. The tokens are not persisted here.
func (a *API) Login(ctx context.Context, creds Credentials) (*Tokens, error) {
	// A 401 here means bad credentials, not an expired access token
	resp, err := a.client.Do(ctx, &apiclient.Request{
		Method: http.MethodPost,
		Path:   LoginPath,
		Body:   creds,
		Retry:  true,
	})
	if err != nil {
		return nil, err
	}
	var tokens Tokens
	if err := resp.Decode(&tokens); err != nil {
		return nil, err
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return nil, fmt.Errorf("login response is missing tokens")
	}
	return &tokens, nil
}

// Register creates an account. It does not log the user in.
func (a *API) Register(ctx context.Context, data RegisterData) error {
	return a.client.Post(ctx, RegisterPath, data, nil)
}

// CurrentUser fetches the profile of the authenticated user
func (a *API) CurrentUser(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := a.client.Get(ctx, ProfilePath, nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// UpdateProfile patches the authenticated user's profile
func (a *API) UpdateProfile(ctx context.Context, update ProfileUpdate) (*Profile, error) {
	var profile Profile
	if err := a.client.Patch(ctx, ProfilePath, update, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}
