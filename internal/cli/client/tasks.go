package client

import (
	"context"
	"net/url"
)

const (
	tasksPath     = "/tasks/tasks/"
	taskListsPath = "/tasks/task-lists/"
	labelsPath    = "/tasks/labels/"
)

// Task represents a task
type Task struct {
	ID              int64        `json:"id"`
	Title           string       `json:"title"`
	Description     string       `json:"description"`
	Project         int64        `json:"project"`
	TaskList        *int64       `json:"task_list"`
	ParentTask      *int64       `json:"parent_task"`
	Assignee        *UserSummary `json:"assignee"`
	CreatedBy       UserSummary  `json:"created_by"`
	Status          string       `json:"status"`
	Priority        string       `json:"priority"`
	StartDate       *string      `json:"start_date"`
	DueDate         *string      `json:"due_date"`
	CompletedAt     *string      `json:"completed_at"`
	EstimatedHours  *float64     `json:"estimated_hours"`
	ActualHours     *float64     `json:"actual_hours"`
	Position        int          `json:"position"`
	IsOverdue       bool         `json:"is_overdue"`
	CommentCount    int          `json:"comment_count"`
	AttachmentCount int          `json:"attachment_count"`
	CreatedAt       string       `json:"created_at"`
	UpdatedAt       string       `json:"updated_at"`
}

// TaskList is a column on a project's board
type TaskList struct {
	ID          int64  `json:"id"`
	Project     int64  `json:"project"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Position    int    `json:"position"`
	Tasks       []Task `json:"tasks"`
}

// TaskLabel is a project-scoped label
type TaskLabel struct {
	ID      int64  `json:"id"`
	Project int64  `json:"project"`
	Name    string `json:"name"`
	Color   string `json:"color"`
}

// TaskFilters narrows ListTasks
type TaskFilters struct {
	Status   string
	Priority string
	Assignee int64
}

// TaskInput is the body for creating or patching a task
type TaskInput struct {
	Title          string   `json:"title,omitempty"`
	Description    string   `json:"description,omitempty"`
	Project        int64    `json:"project,omitempty"`
	TaskList       *int64   `json:"task_list,omitempty"`
	Assignee       *int64   `json:"assignee,omitempty"`
	Status         string   `json:"status,omitempty"`
	Priority       string   `json:"priority,omitempty"`
	DueDate        *string  `json:"due_date,omitempty"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
	Position       *int     `json:"position,omitempty"`
}

type taskListInput struct {
	Project int64  `json:"project"`
	Name    string `json:"name"`
}

// ListTaskLists returns the task lists of a project
func (c *Client) ListTaskLists(ctx context.Context, projectID int64) ([]TaskList, error) {
	q := url.Values{}
	setIDIfPositive(q, "project", projectID)

	var lists []TaskList
	if err := c.list(ctx, taskListsPath, q, &lists); err != nil {
		return nil, err
	}
	return lists, nil
}

// ListTasks returns the tasks of a project
func (c *Client) ListTasks(ctx context.Context, projectID int64, filters TaskFilters) ([]Task, error) {
	q := url.Values{}
	setIDIfPositive(q, "project", projectID)
	setIfNotEmpty(q, "status", filters.Status)
	setIfNotEmpty(q, "priority", filters.Priority)
	setIDIfPositive(q, "assignee", filters.Assignee)

	var tasks []Task
	if err := c.list(ctx, tasksPath, q, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// GetTask fetches a single task
func (c *Client) GetTask(ctx context.Context, id int64) (*Task, error) {
	var task Task
	if err := c.api.Get(ctx, resourcePath(tasksPath, id), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask creates a task
func (c *Client) CreateTask(ctx context.Context, input TaskInput) (*Task, error) {
	var task Task
	if err := c.api.Post(ctx, tasksPath, input, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// UpdateTask patches a task
func (c *Client) UpdateTask(ctx context.Context, id int64, input TaskInput) (*Task, error) {
	var task Task
	if err := c.api.Patch(ctx, resourcePath(tasksPath, id), input, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// DeleteTask deletes a task
func (c *Client) DeleteTask(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, resourcePath(tasksPath, id))
}

// CreateTaskList adds a task list to a project
func (c *Client) CreateTaskList(ctx context.Context, projectID int64, name string) (*TaskList, error) {
	var list TaskList
	if err := c.api.Post(ctx, taskListsPath, taskListInput{Project: projectID, Name: name}, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// ListLabels returns the labels defined on a project
func (c *Client) ListLabels(ctx context.Context, projectID int64) ([]TaskLabel, error) {
	q := url.Values{}
	setIDIfPositive(q, "project", projectID)

	var labels []TaskLabel
	if err := c.list(ctx, labelsPath, q, &labels); err != nil {
		return nil, err
	}
	return labels, nil
}
