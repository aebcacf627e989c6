package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/taskdeck-dev/taskdeck/internal/auth"
	"github.com/taskdeck-dev/taskdeck/internal/models"
)

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Username  string `json:"username" binding:"required,max=150" validate:"username"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	Password2 string `json:"password2" binding:"required"`
	FirstName string `json:"first_name" binding:"max=150"`
	LastName  string `json:"last_name" binding:"max=150"`
	Role      string `json:"role" binding:"omitempty,oneof=ADMIN MANAGER DEV"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the token pair issued at login
type LoginResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	Refresh string `json:"refresh" binding:"required"`
}

// RefreshResponse carries the new access token
type RefreshResponse struct {
	Access string `json:"access"`
}

// ProfileUpdateRequest is a partial profile update. Absent fields are left unchanged.
type ProfileUpdateRequest struct {
	Username  *string `json:"username" binding:"omitempty,min=1,max=150" validate:"omitempty,username"`
	Email     *string `json:"email" binding:"omitempty,email"`
	FirstName *string `json:"first_name" binding:"omitempty,max=150"`
	LastName  *string `json:"last_name" binding:"omitempty,max=150"`
	Role      *string `json:"role" binding:"omitempty,oneof=ADMIN MANAGER DEV"`
}

// UserDetail represents user information returned in responses
type UserDetail struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func newUserDetail(user *models.User) UserDetail {
	return UserDetail{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
	}
}

// register creates an account. It does not log the user in.
func (s *Server) register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username may contain only letters, digits and @/./+/-/_"})
		return
	}
	if req.Password != req.Password2 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Password fields didn't match"})
		return
	}

	email := strings.ToLower(req.Email)
	if taken, err := s.identityTaken(0, req.Username, email); err != nil {
		s.logger.Error().Err(err).Msg("Failed to check existing users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	} else if taken != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": taken})
		return
	}

	passwordHash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to hash password")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	role := req.Role
	if role == "" {
		role = models.RoleDev
	}

	user := &models.User{
		Username:     req.Username,
		Email:        email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         role,
		PasswordHash: passwordHash,
	}
	if err := s.db.Create(user).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	s.logger.Info().Uint("user_id", user.ID).Str("username", user.Username).Msg("User registered")

	c.JSON(http.StatusCreated, newUserDetail(user))
}

// identityTaken returns a message when username or email belongs to a user other than exceptID
func (s *Server) identityTaken(exceptID uint, username, email string) (string, error) {
	var count int64
	if username != "" {
		if err := s.db.Model(&models.User{}).Where("username = ? AND id <> ?", username, exceptID).Count(&count).Error; err != nil {
			return "", err
		}
		if count > 0 {
			return "A user with that username already exists", nil
		}
	}
	if email != "" {
		if err := s.db.Model(&models.User{}).Where("email = ? AND id <> ?", email, exceptID).Count(&count).Error; err != nil {
			return "", err
		}
		if count > 0 {
			return "A user with that email already exists", nil
		}
	}
	return "", nil
}

func (s *Server) login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := s.db.Where("email = ?", strings.ToLower(req.Email)).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active account found with the given credentials"})
		return
	}

	if !auth.CheckPassword(user.PasswordHash, req.Password) {
		s.logger.Warn().Uint("user_id", user.ID).Msg("Failed login attempt")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "No active account found with the given credentials"})
		return
	}

	access, err := s.issuer.IssueAccess(user.ID, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue access token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	refresh, err := s.issuer.IssueRefresh(user.ID, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue refresh token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	record := &models.RefreshToken{
		BaseModel: models.BaseModel{ID: refresh.ID},
		UserID:    user.ID,
		ExpiresAt: refresh.ExpiresAt,
	}
	if err := s.db.Create(record).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to store refresh token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	s.logger.Info().Uint("user_id", user.ID).Str("email", user.Email).Msg("User logged in")

	c.JSON(http.StatusOK, LoginResponse{Access: access.Token, Refresh: refresh.Token})
}

// refresh exchanges a refresh token for a new access token
func (s *Server) refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := s.redeemRefreshToken(req.Refresh)
	if err != nil {
		tokenRefreshesTotal.WithLabelValues("rejected").Inc()
		respondWithError(c, s.logger, http.StatusUnauthorized, err, "Token is invalid or expired")
		return
	}

	access, err := s.issuer.IssueAccess(user.ID, user.Email)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to issue access token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	tokenRefreshesTotal.WithLabelValues("issued").Inc()
	c.JSON(http.StatusOK, RefreshResponse{Access: access.Token})
}

var errRefreshRevoked = errors.New("refresh token revoked or expired")

func (s *Server) redeemRefreshToken(token string) (*models.User, error) {
	claims, err := s.issuer.Validate(token, auth.TypeRefresh)
	if err != nil {
		return nil, err
	}

	var record models.RefreshToken
	if err := models.FindByID(s.db, claims.ID, &record); err != nil {
		return nil, err
	}
	if !record.Usable(s.now()) || record.UserID != claims.UserID {
		return nil, errRefreshRevoked
	}

	var user models.User
	if err := models.FindByID(s.db, record.UserID, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Server) currentUser(c *gin.Context) (*models.User, bool) {
	sessionData, exists := GetSessionData(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}

	var user models.User
	if err := models.FindByID(s.db, sessionData.UserID, &user); err != nil {
		// Deleted after the token was issued
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Warn().Uint("user_id", sessionData.UserID).Msg("Session user no longer exists")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User not found"})
			return nil, false
		}
		s.logger.Error().Err(err).Uint("user_id", sessionData.UserID).Msg("Failed to find user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return nil, false
	}
	return &user, true
}

func (s *Server) getProfile(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, newUserDetail(user))
}

func (s *Server) updateProfile(c *gin.Context) {
	user, ok := s.currentUser(c)
	if !ok {
		return
	}

	var req ProfileUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.validator.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username may contain only letters, digits and @/./+/-/_"})
		return
	}

	updates := map[string]any{}
	var username, email string
	if req.Username != nil {
		username = *req.Username
		updates["username"] = username
	}
	if req.Email != nil {
		email = strings.ToLower(*req.Email)
		updates["email"] = email
	}
	if req.FirstName != nil {
		updates["first_name"] = *req.FirstName
	}
	if req.LastName != nil {
		updates["last_name"] = *req.LastName
	}
	if req.Role != nil {
		updates["role"] = *req.Role
	}

	if taken, err := s.identityTaken(user.ID, username, email); err != nil {
		s.logger.Error().Err(err).Msg("Failed to check existing users")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	} else if taken != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": taken})
		return
	}

	if len(updates) > 0 {
		if err := s.db.Model(user).Updates(updates).Error; err != nil {
			s.logger.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to update profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
			return
		}
		if err := models.FindByID(s.db, user.ID, user); err != nil {
			s.logger.Error().Err(err).Uint("user_id", user.ID).Msg("Failed to reload profile")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
			return
		}
	}

	c.JSON(http.StatusOK, newUserDetail(user))
}
