package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"churchcare/internal/ctxutil"
)

const actorKey = "actor_id"

// StaffAuth enforces bearer JWT tokens signed with HS256 and puts the
// actor id on both the gin context and the request context.
func StaffAuth(signingKey, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if authz == "" || !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}
		tokenStr := strings.TrimSpace(authz[len("bearer "):])
		claims, err := Parse(tokenStr, signingKey, issuer)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		c.Set(actorKey, claims.ActorID)
		c.Request = c.Request.WithContext(ctxutil.WithActorID(c.Request.Context(), claims.ActorID))
		c.Next()
	}
}

// ActorID reads the authenticated actor set by StaffAuth.
func ActorID(c *gin.Context) int64 {
	v, _ := c.Get(actorKey)
	id, _ := v.(int64)
	return id
}
