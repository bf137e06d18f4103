package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"food-marketplace-api/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ctxAccountID = "accountID"
	ctxRole      = "role"
)

// Claims is the session token payload: {id, role}
type Claims struct {
	ID   uint        `json:"id"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Tokens issues and verifies signed session tokens
type Tokens struct {
	Secret []byte
	TTL    time.Duration
	now    func() time.Time
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{Secret: []byte(secret), TTL: ttl, now: time.Now}
}

// GenerateToken creates a signed JWT for an account
func (t *Tokens) GenerateToken(id uint, role models.Role) (string, time.Time, error) {
	issued := t.now()
	expires := issued.Add(t.TTL)
	claims := Claims{
		ID:   id,
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(issued),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(t.Secret)
	return signed, expires, err
}

// Parse validates a token and returns its claims
func (t *Tokens) Parse(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(tok *jwt.Token) (interface{}, error) {
		return t.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if !token.Valid || !claims.Role.Valid() {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// AuthRequired validates the JWT and injects claims into context
func (t *Tokens) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			abort(c, http.StatusUnauthorized, "Authorization header required (Bearer <token>)")
			return
		}
		claims, err := t.Parse(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid or expired token")
			return
		}
		c.Set(ctxAccountID, claims.ID)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// RoleRequired enforces that caller has one of the allowed roles
func RoleRequired(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		callerRole, ok := GetRole(c)
		if !ok {
			abort(c, http.StatusForbidden, "Role not found in context")
			return
		}
		for _, r := range roles {
			if callerRole == r {
				c.Next()
				return
			}
		}
		abort(c, http.StatusForbidden, "Access denied. Required role(s): "+rolesString(roles))
	}
}

// SelfOnly makes sure a non-admin caller only acts on the account named by the path param
func SelfOnly(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := GetRole(c)
		if role == models.RoleAdmin {
			c.Next()
			return
		}
		if c.Param(param) != uintString(GetAccountID(c)) {
			abort(c, http.StatusForbidden, "You can only act on your own account")
			return
		}
		c.Next()
	}
}

func rolesString(roles []models.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

// GetAccountID extracts caller account ID from context
func GetAccountID(c *gin.Context) uint {
	val, ok := c.Get(ctxAccountID)
	if !ok {
		return 0
	}
	id, _ := val.(uint)
	return id
}

// GetRole extracts caller role from context
func GetRole(c *gin.Context) (models.Role, bool) {
	val, ok := c.Get(ctxRole)
	if !ok {
		return "", false
	}
	role, ok := val.(models.Role)
	return role, ok
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}
