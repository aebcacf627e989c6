package client

import (
	"context"
	"net/url"
	"strconv"
)

const notificationsPath = "/notifications/"

// Notification represents a user notification
type Notification struct {
	ID               int64   `json:"id"`
	Recipient        int64   `json:"recipient"`
	NotificationType string  `json:"notification_type"`
	Title            string  `json:"title"`
	Message          string  `json:"message"`
	IsRead           bool    `json:"is_read"`
	CreatedAt        string  `json:"created_at"`
	ReadAt           *string `json:"read_at"`
}

// NotificationFilters narrows ListNotifications. A nil IsRead returns both.
type NotificationFilters struct {
	IsRead           *bool
	NotificationType string
}

type unreadCountResponse struct {
	Count int `json:"count"`
}

// ListNotifications lists the current user's notifications
func (c *Client) ListNotifications(ctx context.Context, filters NotificationFilters) ([]Notification, error) {
	q := url.Values{}
	if filters.IsRead != nil {
		q.Set("is_read", strconv.FormatBool(*filters.IsRead))
	}
	setIfNotEmpty(q, "notification_type", filters.NotificationType)

	var notifications []Notification
	if err := c.list(ctx, notificationsPath, q, &notifications); err != nil {
		return nil, err
	}
	return notifications, nil
}

// UnreadCount returns the number of unread notifications
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp unreadCountResponse
	if err := c.api.Get(ctx, notificationsPath+"unread-count/", nil, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// MarkNotificationRead marks one notification as read
func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.api.Post(ctx, actionPath(notificationsPath, id, "mark_as_read"), nil, nil)
}

// MarkAllNotificationsRead marks every notification as read
func (c *Client) MarkAllNotificationsRead(ctx context.Context) error {
	return c.api.Post(ctx, notificationsPath+"mark_all_as_read/", nil, nil)
}

// DeleteNotification deletes a notification
func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.api.Delete(ctx, resourcePath(notificationsPath, id))
}
