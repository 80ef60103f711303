package auth

// Roles carried in access tokens
const (
	RoleOperator = "operator"
	RoleViewer   = "viewer"
)

// Claims identifies the caller of a guarded route
type Claims struct {
	Subject string `json:"sub"`
	Role    string `json:"role"`
}

// CanWrite reports whether the role may change signal state
func (c *Claims) CanWrite() bool {
	return c != nil && c.Role == RoleOperator
}

// AuthError represents an authentication error
type AuthError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e AuthError) Error() string {
	return e.Message
}

// Common auth errors
var (
	ErrInvalidToken = AuthError{Code: "INVALID_TOKEN", Message: "invalid or expired token"}
	ErrTokenExpired = AuthError{Code: "TOKEN_EXPIRED", Message: "token has expired"}
	ErrUnauthorized = AuthError{Code: "UNAUTHORIZED", Message: "unauthorized access"}
	ErrForbidden    = AuthError{Code: "FORBIDDEN", Message: "access forbidden"}
	ErrNoSecret     = AuthError{Code: "NO_SECRET", Message: "jwt secret is not configured"}
)
