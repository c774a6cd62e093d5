package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sanjay9342/ramesh-computers/common/apperrors"
)

const (
	UserContextKey = "userID"
	RoleContextKey = "role"

	RoleAdmin = "admin"
)

// Auth identifies the caller. With a JWT secret configured it requires an
// HS256 bearer token; without one it trusts the identity headers set by the
// API gateway in front of the service.
func Auth(jwtSecret string) gin.HandlerFunc {
	secret := []byte(strings.TrimSpace(jwtSecret))

	return func(c *gin.Context) {
		var userID, role string
		if len(secret) > 0 {
			token := bearerToken(c.GetHeader("Authorization"))
			if token == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.Unauthorized("Missing bearer token"))
				return
			}
			var err error
			userID, role, err = parseToken(secret, token)
			if err != nil {
				c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.Unauthorized("Invalid or expired token"))
				return
			}
		} else {
			userID = c.GetHeader("X-User-ID")
			role = c.GetHeader("X-User-Role")
			if userID == "" {
				if v, err := c.Cookie("user_id"); err == nil {
					userID = v
				}
			}
			if role == "" {
				if v, err := c.Cookie("user_role"); err == nil {
					role = v
				}
			}
		}

		if userID == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apperrors.Unauthorized("Unauthorized"))
			return
		}
		c.Set(UserContextKey, userID)
		c.Set(RoleContextKey, role)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// parseToken validates an HS256 token and returns its subject and role. The
// subject is read from "sub", falling back to "user_id".
func parseToken(secret []byte, tokenStr string) (string, string, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil || token == nil || !token.Valid {
		return "", "", errors.New("invalid or expired token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", "", errors.New("invalid token claims")
	}
	userID, _ := claims["sub"].(string)
	if userID == "" {
		userID, _ = claims["user_id"].(string)
	}
	role, _ := claims["role"].(string)
	if userID == "" {
		return "", "", errors.New("token has no subject")
	}
	return userID, role, nil
}

// GetUserID extracts the user ID from the Gin context.
func GetUserID(c *gin.Context) (string, error) {
	if val, ok := c.Get(UserContextKey); ok {
		if id, ok := val.(string); ok && id != "" {
			return id, nil
		}
	}
	return "", errors.New("user ID not found in context")
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(RoleContextKey) == RoleAdmin
}

// AdminOnly restricts access to admin role.
func AdminOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, apperrors.Forbidden("Admin role required"))
			return
		}
		c.Next()
	}
}
