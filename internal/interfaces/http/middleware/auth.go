package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storefront/backend/internal/domain/shared"
)

// ContextUserIDKey is the gin context key holding the authenticated user ID
const ContextUserIDKey = "user_id"

// UserIDHeader carries the calling principal. Authentication happens at the
// edge proxy; this service trusts the header it forwards.
const UserIDHeader = "X-User-ID"

// Principal resolves the calling user from the X-User-ID header and verifies
// it against the user directory. Requests without a resolvable principal are
// rejected with 401.
func Principal(users shared.UserDirectory, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		raw := c.GetHeader(UserIDHeader)
		if raw == "" {
			abortUnauthorized(c, "Missing "+UserIDHeader+" header")
			return
		}

		userID, err := uuid.Parse(raw)
		if err != nil {
			abortUnauthorized(c, "Malformed "+UserIDHeader+" header")
			return
		}

		known, err := users.Exists(c.Request.Context(), userID)
		if err != nil {
			logger.Error("User directory lookup failed",
				zap.String("user_id", raw),
				zap.Error(err))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ERR_INTERNAL",
					"message": "Could not resolve calling user",
				},
			})
			return
		}
		if !known {
			abortUnauthorized(c, "Unknown user")
			return
		}

		c.Set(ContextUserIDKey, userID)
		c.Next()
	}
}

// GetUserID returns the authenticated user ID set by Principal.
func GetUserID(c *gin.Context) (uuid.UUID, bool) {
	v, ok := c.Get(ContextUserIDKey)
	if !ok {
		return uuid.Nil, false
	}
	userID, ok := v.(uuid.UUID)
	return userID, ok
}

// RequirePermission creates middleware that requires the named permission.
// It must run after Principal.
func RequirePermission(users shared.UserDirectory, permission string, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			abortUnauthorized(c, "No authenticated user")
			return
		}

		if err := users.Authorize(c.Request.Context(), userID, permission); err != nil {
			logger.Warn("Permission denied",
				zap.String("user_id", userID.String()),
				zap.String("permission", permission),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method))
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ERR_FORBIDDEN",
					"message": "Access denied: insufficient permissions",
				},
			})
			return
		}

		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "ERR_UNAUTHORIZED",
			"message": message,
		},
	})
}
