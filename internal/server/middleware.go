package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/taskdeck-dev/taskdeck/internal/auth"
	"github.com/taskdeck-dev/taskdeck/internal/models"
)

const (
	bearerPrefix    = "Bearer "
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrInvalidToken      = errors.New("invalid token")
	ErrUserNotFound      = errors.New("user not found")
)

func setSession(c *gin.Context, sessionData *auth.SessionData) {
	c.Set("session", sessionData)
}

func GetSessionData(c *gin.Context) (*auth.SessionData, bool) {
	session, exists := c.Get("session")
	if !exists {
		return nil, false
	}

	sessionData, ok := session.(*auth.SessionData)
	return sessionData, ok
}

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

func respondWithError(c *gin.Context, log zerolog.Logger, statusCode int, err error, message string) {
	log.Warn().Err(err).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

// authenticate validates an access token and loads its user
func authenticate(issuer *auth.TokenIssuer, db *gorm.DB, token string) (*models.User, error) {
	claims, err := issuer.Validate(token, auth.TypeAccess)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	var user models.User
	if err := models.FindByID(db, claims.UserID, &user); err != nil {
		return nil, errors.Join(ErrUserNotFound, err)
	}
	return &user, nil
}

// JWTAuthMiddleware validates access tokens from the Authorization header
func JWTAuthMiddleware(issuer *auth.TokenIssuer, db *gorm.DB, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			var message string
			switch err {
			case ErrMissingAuthHeader:
				message = "Missing authorization header"
			case ErrInvalidAuthFormat:
				message = "Invalid authorization header format"
			case ErrEmptyToken:
				message = "Empty token"
			}
			respondWithError(c, log, http.StatusUnauthorized, err, message)
			return
		}

		user, err := authenticate(issuer, db, token)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				respondWithError(c, log, http.StatusUnauthorized, err, "User not found")
				return
			}
			respondWithError(c, log, http.StatusUnauthorized, err, "Invalid or expired token")
			return
		}

		setSession(c, &auth.SessionData{
			UserID:     user.ID,
			Email:      user.Email,
			Role:       user.Role,
			AuthMethod: "header",
		})

		c.Next()
	}
}

// requestIDMiddleware keeps the caller's X-Request-ID or assigns a new one,
// and echoes it on the response
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}
