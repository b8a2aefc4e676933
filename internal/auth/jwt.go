package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type UserRole string

const (
	RoleSuperAdmin    UserRole = "SUPER_ADMIN"
	RoleBusinessOwner UserRole = "BUSINESS_OWNER"
	RoleBusinessStaff UserRole = "BUSINESS_STAFF"
	RoleService       UserRole = "SERVICE"
)

type Claims struct {
	UserID      string   `json:"userId"`
	Role        UserRole `json:"role"`
	Email       string   `json:"email,omitempty"`
	BusinessID  *string  `json:"businessId,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrTokenRequired = errors.New("token required")
	ErrTokenExpired  = errors.New("token expired")
)

func ParseBearerToken(authHeader string) string {
	parts := strings.Fields(strings.TrimSpace(authHeader))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return parts[1]
}

func VerifyAccessToken(tokenString string, secret string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrTokenRequired
	}

	claims := &Claims{}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{"HS256"}))
	_, err := parser.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt == nil || claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// IssueAccessToken signs claims with HS256 and an expiry ttl from now.
func IssueAccessToken(claims Claims, secret string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// TenantID returns the business the token is scoped to, if any.
func (c *Claims) TenantID() string {
	if c == nil || c.BusinessID == nil {
		return ""
	}
	return strings.TrimSpace(*c.BusinessID)
}
