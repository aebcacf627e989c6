package auth

// SessionData represents the authenticated session context for a request
type SessionData struct {
	UserID     uint   `json:"user_id"`
	Email      string `json:"email"`
	Role       string `json:"role"`
	AuthMethod string `json:"auth_method"` // "header"
}
