package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/kipronoh/circulation/internal/models"
	"github.com/kipronoh/circulation/internal/services"
)

const actorContextKey = "actor"

type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	return &AuthMiddleware{
		authService: authService,
	}
}

// RequireAuth validates the bearer token and attaches the resulting
// actor to the request context
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MISSING_AUTH_HEADER",
					"message": "Authorization header is required",
				},
			})
			c.Abort()
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_AUTH_FORMAT",
					"message": "Authorization header must be in format 'Bearer <token>'",
				},
			})
			c.Abort()
			return
		}

		claims, err := m.authService.ValidateToken(parts[1])
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "INVALID_TOKEN",
					"message": "Invalid or expired token",
				},
			})
			c.Abort()
			return
		}

		c.Set(actorContextKey, models.Actor{
			UserID: claims.UserID,
			Role:   claims.Role,
		})
		c.Set("username", claims.Username)

		c.Next()
	}
}

// RequireStaff restricts a route to librarians and admins. Must run
// after RequireAuth.
func (m *AuthMiddleware) RequireStaff() gin.HandlerFunc {
	return m.RequireRole(models.RoleAdmin, models.RoleLibrarian)
}

// RequireAdmin restricts a route to admins
func (m *AuthMiddleware) RequireAdmin() gin.HandlerFunc {
	return m.RequireRole(models.RoleAdmin)
}

func (m *AuthMiddleware) RequireRole(allowedRoles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := GetActor(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "MISSING_ACTOR",
					"message": "Authentication required",
				},
			})
			c.Abort()
			return
		}

		for _, allowedRole := range allowedRoles {
			if actor.Role == allowedRole {
				c.Next()
				return
			}
		}

		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INSUFFICIENT_PERMISSIONS",
				"message": "Insufficient permissions to access this resource",
			},
		})
		c.Abort()
	}
}

// GetActor returns the authenticated actor for the request
func GetActor(c *gin.Context) (models.Actor, bool) {
	value, exists := c.Get(actorContextKey)
	if !exists {
		return models.Actor{}, false
	}

	actor, ok := value.(models.Actor)
	return actor, ok
}
