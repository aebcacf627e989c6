package models

import (
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

// User roles accepted at registration
const (
	RoleAdmin   = "ADMIN"
	RoleManager = "MANAGER"
	RoleDev     = "DEV"
)

// Notification types
const (
	NotificationTaskAssigned  = "TASK_ASSIGNED"
	NotificationTaskUpdated   = "TASK_UPDATED"
	NotificationProjectUpdate = "PROJECT_UPDATE"
	NotificationTeamInvite    = "TEAM_INVITATION"
	NotificationSystem        = "SYSTEM"
)

// ErrNotFound is returned by lookups that match no row
var ErrNotFound = errors.New("record not found")

// BaseModel provides common fields and auto-generated ULID for string-keyed models
type BaseModel struct {
	ID        string    `json:"id" gorm:"primaryKey;type:varchar(26)"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// BeforeCreate generates a ULID for the ID field if it's empty
func (b *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = ulid.Make().String()
	}
	return nil
}

// User represents an account. IDs are integers because clients address
// users numerically.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;not null"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         string    `json:"role" gorm:"not null;default:DEV"`
	PasswordHash string    `json:"-" gorm:"not null"`
	CreatedAt    time.Time `json:"date_joined" gorm:"autoCreateTime"`
}

// RefreshToken records an issued refresh token by jti so it can be revoked
type RefreshToken struct {
	BaseModel
	UserID    uint       `json:"user_id" gorm:"index;not null"`
	ExpiresAt time.Time  `json:"expires_at" gorm:"index;not null"`
	RevokedAt *time.Time `json:"revoked_at"`
}

// Usable reports whether the token is neither revoked nor expired at now
func (r *RefreshToken) Usable(now time.Time) bool {
	return r.RevokedAt == nil && now.Before(r.ExpiresAt)
}

// Notification is a message delivered to one user
type Notification struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	RecipientID      uint       `json:"recipient" gorm:"index;not null"`
	NotificationType string     `json:"notification_type" gorm:"not null"`
	Title            string     `json:"title" gorm:"not null"`
	Message          string     `json:"message"`
	IsRead           bool       `json:"is_read" gorm:"not null;default:false;index"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
	ReadAt           *time.Time `json:"read_at"`
}

// AutoMigrate runs database migrations for all models
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&User{},
		&RefreshToken{},
		&Notification{},
	)
}

// FindByID loads the row with the given primary key into model
func FindByID[T any](db *gorm.DB, id any, model *T) error {
	err := db.Where("id = ?", id).First(model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// PurgeExpiredRefreshTokens deletes refresh tokens that expired before now and
// returns how many were removed
func PurgeExpiredRefreshTokens(db *gorm.DB, now time.Time) (int64, error) {
	res := db.Where("expires_at < ?", now).Delete(&RefreshToken{})
	return res.RowsAffected, res.Error
}
