package auth

import (
	"net/http"
	"strings"

	"college-voting-backend/models"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const currentUserKey = "current_user"
const currentAdminKey = "current_admin"
const currentCandidateKey = "current_candidate"

// Middleware resolves the bearer token to a user record and aborts with
// 401 when the token is missing, malformed or expired. The resolved user
// is trusted by everything downstream.
func Middleware(db *gorm.DB, tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, tokens)
		if !ok {
			return
		}
		if claims.Kind != TokenKindUser {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		var user models.User
		if err := db.Where("email = ?", claims.Subject).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		if !user.IsActive {
			c.JSON(http.StatusForbidden, gin.H{"error": "User account is inactive"})
			c.Abort()
			return
		}

		c.Set(currentUserKey, &user)
		c.Next()
	}
}

// RequireRoles gates an endpoint on the authenticated user's role.
// Must run after Middleware.
func RequireRoles(required ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := CurrentUser(c)
		if user == nil || !Allow(user.Role, required...) {
			c.JSON(http.StatusForbidden, gin.H{"error": "Not authorized"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// AdminMiddleware resolves an admin-typed bearer token to an admin record
func AdminMiddleware(db *gorm.DB, tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, tokens)
		if !ok {
			return
		}
		if claims.Kind != TokenKindAdmin {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		var admin models.Admin
		if err := db.Where("id = ?", claims.Subject).First(&admin).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Set(currentAdminKey, &admin)
		c.Next()
	}
}

// CandidateMiddleware resolves a candidate-typed bearer token
func CandidateMiddleware(db *gorm.DB, tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, tokens)
		if !ok {
			return
		}
		if claims.Kind != TokenKindCandidate {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}

		var candidate models.Candidate
		if err := db.Where("id = ?", claims.Subject).First(&candidate).Error; err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			c.Abort()
			return
		}
		c.Set(currentCandidateKey, &candidate)
		c.Next()
	}
}

// CurrentUser returns the user resolved by Middleware, or nil
func CurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(currentUserKey); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// CurrentAdmin returns the admin resolved by AdminMiddleware, or nil
func CurrentAdmin(c *gin.Context) *models.Admin {
	if v, exists := c.Get(currentAdminKey); exists {
		if admin, ok := v.(*models.Admin); ok {
			return admin
		}
	}
	return nil
}

// CurrentCandidate returns the candidate resolved by CandidateMiddleware, or nil
func CurrentCandidate(c *gin.Context) *models.Candidate {
	if v, exists := c.Get(currentCandidateKey); exists {
		if cand, ok := v.(*models.Candidate); ok {
			return cand
		}
	}
	return nil
}

func parseBearer(c *gin.Context, tokens *TokenManager) (*Claims, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
		c.Abort()
		return nil, false
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := tokens.Parse(tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		c.Abort()
		return nil, false
	}
	return claims, true
}
