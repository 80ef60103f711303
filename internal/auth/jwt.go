package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const audience = "smc-signal-engine-api"

// JWTManager handles JWT token operations
type JWTManager struct {
	secret              []byte
	issuer              string
	accessTokenDuration time.Duration
	now                 func() time.Time
}

type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(secret, issuer string, accessDuration time.Duration) (*JWTManager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	if accessDuration <= 0 {
		accessDuration = 15 * time.Minute
	}
	return &JWTManager{
		secret:              []byte(secret),
		issuer:              issuer,
		accessTokenDuration: accessDuration,
		now:                 time.Now,
	}, nil
}

// GenerateAccessToken signs a token for subject with role
func (m *JWTManager) GenerateAccessToken(subject, role string) (string, error) {
	now := m.now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, tokenClaims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.accessTokenDuration)),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    m.issuer,
			Audience:  []string{audience},
		},
	})

	signedToken, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signedToken, nil
}

// ValidateAccessToken validates an access token and returns the claims
func (m *JWTManager) ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &tokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(m.issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrInvalidToken
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &Claims{Subject: claims.Subject, Role: claims.Role}, nil
}

// AccessTokenDuration returns the lifetime of issued tokens
func (m *JWTManager) AccessTokenDuration() time.Duration {
	return m.accessTokenDuration
}
