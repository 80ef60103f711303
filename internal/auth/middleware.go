package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextKeyClaims holds the caller's *Claims
const ContextKeyClaims = "auth_claims"

// Middleware creates a JWT authentication middleware
func Middleware(jwtManager *JWTManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abort(c, http.StatusUnauthorized, ErrUnauthorized.Code, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abort(c, http.StatusUnauthorized, ErrUnauthorized.Code, "invalid authorization header format")
			return
		}

		claims, err := jwtManager.ValidateAccessToken(parts[1])
		if err != nil {
			var authErr AuthError
			if !errors.As(err, &authErr) {
				authErr = ErrInvalidToken
			}
			abort(c, http.StatusUnauthorized, authErr.Code, authErr.Message)
			return
		}

		c.Set(ContextKeyClaims, claims)
		c.Next()
	}
}

// RequireWrite ensures the caller may change signal state. Must run after
// Middleware.
func RequireWrite() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetClaims(c).CanWrite() {
			abort(c, http.StatusForbidden, ErrForbidden.Code, "operator role required")
			return
		}
		c.Next()
	}
}

// GetClaims extracts the caller's claims from the Gin context
func GetClaims(c *gin.Context) *Claims {
	if claims, exists := c.Get(ContextKeyClaims); exists {
		if cl, ok := claims.(*Claims); ok {
			return cl
		}
	}
	return nil
}

func abort(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, gin.H{
		"error":   code,
		"message": message,
	})
}
