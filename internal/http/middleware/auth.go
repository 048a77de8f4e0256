// README: JWT auth middleware; supplies rider identity and role to handlers.
package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ContextRiderID = "rider_id"
	ContextRole    = "role"

	RoleRider = "rider"
	RoleStaff = "staff"
)

type claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Auth verifies the Bearer token and stores the authenticated rider id and
// role on the request context. Credentials themselves are issued elsewhere;
// this layer only trusts and decodes them.
func Auth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		var cl claims
		parsed, err := jwt.ParseWithClaims(token, &cl, func(t *jwt.Token) (any, error) {
			return []byte(secret), nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
		if err != nil || !parsed.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		riderID, err := strconv.ParseInt(cl.Subject, 10, 64)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid subject"})
			return
		}

		c.Set(ContextRiderID, riderID)
		c.Set(ContextRole, cl.Role)
		c.Next()
	}
}

// RequireRole guards staff-only routes.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ContextRole) != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// RiderID returns the authenticated rider id set by Auth.
func RiderID(c *gin.Context) int64 {
	v, _ := c.Get(ContextRiderID)
	id, _ := v.(int64)
	return id
}
