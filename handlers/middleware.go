package handlers

import (
	"net/http"
	"strings"

	"pathwaymed-backend/models"
	"pathwaymed-backend/repository"
	"pathwaymed-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const userIDKey = "user_id"

// AuthMiddleware validates the bearer token and stores the user ID in the
// request context
func AuthMiddleware(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Missing or malformed Authorization header",
				},
			})
			return
		}

		userID, err := authService.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "UNAUTHORIZED",
					"message": "Invalid or expired token",
				},
			})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// RequireAdmin rejects requests from non-admin users. Must run after
// AuthMiddleware.
func RequireAdmin(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := CurrentUserID(c)
		user, err := userRepo.GetByID(c.Request.Context(), userID)
		if err != nil || user.Role != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "FORBIDDEN",
					"message": "Admin access required",
				},
			})
			return
		}
		c.Next()
	}
}

// CurrentUserID returns the authenticated user's ID from the request context
func CurrentUserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(userIDKey)
	userID, _ := id.(uuid.UUID)
	return userID
}
