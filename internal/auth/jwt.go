package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Token types carried in the typ claim
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// ErrWrongTokenType is returned when a refresh token is presented as an access token or vice versa
var ErrWrongTokenType = errors.New("wrong token type")

// JWTClaims represents the JWT token claims
type JWTClaims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	Type   string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuer mints and validates HS256 access and refresh tokens
type TokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer creates a TokenIssuer signing with secret
func NewTokenIssuer(secret string, accessTTL, refreshTTL time.Duration) *TokenIssuer {
	return &TokenIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// IssuedToken is a signed token with its identifier and expiry
type IssuedToken struct {
	Token     string
	ID        string
	ExpiresAt time.Time
}

// IssueAccess creates a short-lived access token for a user
func (i *TokenIssuer) IssueAccess(userID uint, email string) (*IssuedToken, error) {
	return i.issue(userID, email, TypeAccess, i.accessTTL)
}

// IssueRefresh creates a long-lived refresh token for a user. The returned ID
// is the jti to persist for revocation.
func (i *TokenIssuer) IssueRefresh(userID uint, email string) (*IssuedToken, error) {
	return i.issue(userID, email, TypeRefresh, i.refreshTTL)
}

func (i *TokenIssuer) issue(userID uint, email, typ string, ttl time.Duration) (*IssuedToken, error) {
	if len(i.secret) == 0 {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	now := i.now()
	id := ulid.Make().String()
	expiresAt := now.Add(ttl)

	claims := JWTClaims{
		UserID: userID,
		Email:  email,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        id,
			Subject:   strconv.FormatUint(uint64(userID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	return &IssuedToken{Token: signed, ID: id, ExpiresAt: expiresAt}, nil
}

// Validate validates a JWT token of the given type and returns the claims
func (i *TokenIssuer) Validate(tokenString, typ string) (*JWTClaims, error) {
	if len(i.secret) == 0 {
		return nil, fmt.Errorf("JWT secret not initialized")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		// Validate signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.now), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.Type != typ {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
