// Package client provides typed calls for the Taskdeck domain endpoints.
// Authentication, token refresh and error typing are handled by apiclient.
package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/taskdeck-dev/taskdeck/internal/apiclient"
)

// Client represents a typed client for the Taskdeck API
type Client struct {
	api *apiclient.Client
}

// New creates a new domain client on top of an authenticated API client
func New(api *apiclient.Client) *Client {
	return &Client{api: api}
}

// UserSummary is the compact user representation embedded in other resources
type UserSummary struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

// detail is used for resources whose members are only exposed on the detail view
type detail[T any] struct {
	Members []T `json:"members"`
}

func resourcePath(collection string, id int64) string {
	return fmt.Sprintf("%s%d/", collection, id)
}

func actionPath(collection string, id int64, action string) string {
	return fmt.Sprintf("%s%d/%s/", collection, id, action)
}

func setIfNotEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func setIDIfPositive(q url.Values, key string, id int64) {
	if id > 0 {
		q.Set(key, strconv.FormatInt(id, 10))
	}
}

func (c *Client) list(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.api.Get(ctx, path, query, out); err != nil {
		return fmt.Errorf("failed to list %s: %w", path, err)
	}
	return nil
}
