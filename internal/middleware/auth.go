package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/citysafe/planning-backend/internal/handlers"
	"github.com/citysafe/planning-backend/internal/platform/logger"
	"github.com/citysafe/planning-backend/internal/services"
)

type AuthMiddleware struct {
	authService services.AuthService
	log         *logger.Logger
}

func NewAuthMiddleware(authService services.AuthService, baseLog *logger.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
		log:         baseLog.With("middleware", "AuthMiddleware"),
	}
}

// RequireAuth validates the bearer token and stores the user id on the
// context for handlers downstream.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"code":    "missing_token",
				"message": "authorization header is required",
			}})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		userID, err := m.authService.ValidateAccessToken(c.Request.Context(), token)
		if err != nil {
			m.log.Debug("token rejected", "path", c.FullPath(), "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"code":    "unauthorized",
				"message": "invalid or expired token",
			}})
			return
		}
		handlers.SetAuthedUserID(c, userID)
		c.Next()
	}
}
