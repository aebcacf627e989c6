package client

import (
	"context"
	"net/url"
)

const projectsPath = "/projects/projects/"

// Project represents a project
type Project struct {
	ID              int64        `json:"id"`
	Name            string       `json:"name"`
	Slug            string       `json:"slug"`
	Description     string       `json:"description"`
	Owner           UserSummary  `json:"owner"`
	Manager         *UserSummary `json:"manager"`
	Status          string       `json:"status"`
	Priority        string       `json:"priority"`
	Progress        float64      `json:"progress"`
	StartDate       *string      `json:"start_date"`
	DueDate         *string      `json:"due_date"`
	CompletedDate   *string      `json:"completed_date"`
	Budget          *float64     `json:"budget"`
	IsActive        bool         `json:"is_active"`
	IsPublic        bool         `json:"is_public"`
	IsOverdue       bool         `json:"is_overdue"`
	TotalTasks      int          `json:"total_tasks"`
	CompletedTasks  int          `json:"completed_tasks"`
	CommentCount    int          `json:"comment_count"`
	AttachmentCount int          `json:"attachment_count"`
	CreatedAt       string       `json:"created_at"`
	UpdatedAt       string       `json:"updated_at"`
}

// ProjectMember represents a user's membership in a project
type ProjectMember struct {
	ID       int64       `json:"id"`
	User     UserSummary `json:"user"`
	Role     string      `json:"role"`
	JoinedAt string      `json:"joined_at"`
}

// ProjectFilters narrows ListProjects
type ProjectFilters struct {
	Status   string
	Priority string
	Search   string
}

// ProjectInput is the body for creating or patching a project
type ProjectInput struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Status      string   `json:"status,omitempty"`
	Priority    string   `json:"priority,omitempty"`
	StartDate   *string  `json:"start_date,omitempty"`
	DueDate     *string  `json:"due_date,omitempty"`
	Budget      *float64 `json:"budget,omitempty"`
	IsPublic    *bool    `json:"is_public,omitempty"`
}

// ListProjects lists the projects visible to the current user
func (c *Client) ListProjects(ctx context.Context, filters ProjectFilters) ([]Project, error) {
	q := url.Values{}
	setIfNotEmpty(q, "status", filters.Status)
	setIfNotEmpty(q, "priority", filters.Priority)
	setIfNotEmpty(q, "search", filters.Search)

	var projects []Project
	if err := c.list(ctx, projectsPath, q, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetProject fetches a single project
func (c *Client) GetProject(ctx context.Context, id int64) (*Project, error) {
	var project Project
	if err := c.api.Get(ctx, resourcePath(projectsPath, id), nil, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateProject creates a project
func (c *Client) CreateProject(ctx context.Context, input ProjectInput) (*Project, error) {
	var project Project
	if err := c.api.Post(ctx, projectsPath, input, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// UpdateProject patches a project
func (c *Client) UpdateProject(ctx context.Context, id int64, input ProjectInput) (*Project, error) {
	var project Project
	if err := c.api.Patch(ctx, resourcePath(projectsPath, id), input, &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// DeleteProject deletes a project
func (c *Client) DeleteProject(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, resourcePath(projectsPath, id))
}

// ListProjectMembers returns the members listed on the project detail
func (c *Client) ListProjectMembers(ctx context.Context, projectID int64) ([]ProjectMember, error) {
	var d detail[ProjectMember]
	if err := c.api.Get(ctx, resourcePath(projectsPath, projectID), nil, &d); err != nil {
		return nil, err
	}
	if d.Members == nil {
		return []ProjectMember{}, nil
	}
	return d.Members, nil
}
