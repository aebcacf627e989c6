package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/taskdeck-dev/taskdeck/internal/models"
)

// CreateNotificationRequest creates a notification. Recipient defaults to the caller.
type CreateNotificationRequest struct {
	Recipient        uint   `json:"recipient"`
	NotificationType string `json:"notification_type" binding:"required,oneof=TASK_ASSIGNED TASK_UPDATED PROJECT_UPDATE TEAM_INVITATION SYSTEM"`
	Title            string `json:"title" binding:"required,max=255"`
	Message          string `json:"message"`
}

func (s *Server) userNotifications(c *gin.Context) (uint, bool) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, false
	}
	return sessionData.UserID, true
}

func (s *Server) listNotifications(c *gin.Context) {
	userID, ok := s.userNotifications(c)
	if !ok {
		return
	}

	query := s.db.Where("recipient_id = ?", userID)
	if isRead := c.Query("is_read"); isRead != "" {
		read, err := strconv.ParseBool(isRead)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "is_read must be true or false"})
			return
		}
		query = query.Where("is_read = ?", read)
	}
	if kind := c.Query("notification_type"); kind != "" {
		query = query.Where("notification_type = ?", kind)
	}

	notifications := []models.Notification{}
	if err := query.Order("created_at DESC, id DESC").Find(&notifications).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to list notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// createNotification stores a notification and pushes it to the recipient's open sockets
func (s *Server) createNotification(c *gin.Context) {
	userID, ok := s.userNotifications(c)
	if !ok {
		return
	}

	var req CreateNotificationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	recipient := req.Recipient
	if recipient == 0 {
		recipient = userID
	}

	var user models.User
	if err := models.FindByID(s.db, recipient, &user); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Recipient does not exist"})
		return
	}

	notification := &models.Notification{
		RecipientID:      recipient,
		NotificationType: req.NotificationType,
		Title:            req.Title,
		Message:          req.Message,
	}
	if err := s.db.Create(notification).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create notification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create notification"})
		return
	}

	s.hub.push(notification)

	c.JSON(http.StatusCreated, notification)
}

func (s *Server) unreadCount(c *gin.Context) {
	userID, ok := s.userNotifications(c)
	if !ok {
		return
	}

	var count int64
	if err := s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Count(&count).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to count notifications")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) markNotificationRead(c *gin.Context) {
	userID, ok := s.userNotifications(c)
	if !ok {
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	if err := s.markRead(userID, uint(id)); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
			return
		}
		s.logger.Error().Err(err).Msg("Failed to mark notification read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "notification marked as read"})
}

// markRead marks one of userID's notifications as read. Already-read
// notifications keep their original read time.
func (s *Server) markRead(userID, id uint) error {
	var notification models.Notification
	if err := s.db.Where("id = ? AND recipient_id = ?", id, userID).First(&notification).Error; err != nil {
		return models.ErrNotFound
	}
	if notification.IsRead {
		return nil
	}

	now := s.now()
	return s.db.Model(&notification).Updates(map[string]any{
		"is_read": true,
		"read_at": &now,
	}).Error
}

func (s *Server) markAllNotificationsRead(c *gin.Context) {
	userID, ok := s.userNotifications(c)
	if !ok {
		return
	}

	res := s.db.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", userID, false).
		Updates(map[string]any{"is_read": true, "read_at": s.now()})
	if res.Error != nil {
		s.logger.Error().Err(res.Error).Msg("Failed to mark notifications read")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "all notifications marked as read", "updated": res.RowsAffected})
}

func (s *Server) deleteNotification(c *gin.Context) {
	userID, ok := s.userNotifications(c)
	if !ok {
		return
	}

	res := s.db.Where("id = ? AND recipient_id = ?", c.Param("id"), userID).Delete(&models.Notification{})
	if res.Error != nil {
		s.logger.Error().Err(res.Error).Msg("Failed to delete notification")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if res.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
