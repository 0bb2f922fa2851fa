package httpapi

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/studentverse/redemption/internal/domain"
)

// Gin context keys for the verified caller identity.
const (
	ctxKeyUserID = "user_id"
	ctxKeyRole   = "role"
)

// Auth verifies the platform bearer token (HS256, signed by the identity
// service) and puts the caller's user id and role into the request
// context. Identity is never read from the request body.
func Auth(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if header == "" {
			abortError(c, domain.E(domain.KindUnauthenticated, "missing bearer token"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			abortError(c, domain.E(domain.KindUnauthenticated, "invalid authorization scheme"))
			return
		}

		claims := jwt.MapClaims{}
		parsed, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims,
			func(*jwt.Token) (any, error) { return secret, nil },
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithExpirationRequired(),
		)
		if err != nil || !parsed.Valid {
			abortError(c, domain.E(domain.KindUnauthenticated, "invalid bearer token"))
			return
		}

		sub, err := claims.GetSubject()
		if err != nil || strings.TrimSpace(sub) == "" {
			abortError(c, domain.E(domain.KindUnauthenticated, "bearer token has no subject"))
			return
		}
		role, _ := claims["role"].(string)
		if role == "" {
			role = string(domain.RoleStudent)
		}

		c.Set(ctxKeyUserID, sub)
		c.Set(ctxKeyRole, role)
		c.Next()
	}
}

// RequireRole gates a route group to the listed roles.
func RequireRole(roles ...domain.Role) gin.HandlerFunc {
	allowed := make(map[domain.Role]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		if _, ok := allowed[domain.Role(c.GetString(ctxKeyRole))]; !ok {
			abortError(c, domain.E(domain.KindForbidden, "insufficient role"))
			return
		}
		c.Next()
	}
}

// callerID returns the verified user id placed by Auth.
func callerID(c *gin.Context) string {
	return c.GetString(ctxKeyUserID)
}
