package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/pkg/logger"
	"github.com/sketchcode/backend/pkg/tokens"
	"github.com/sketchcode/backend/pkg/utils"
	"gorm.io/gorm"
)

const currentUserKey = "currentUser"

// Cookie names the auth handlers and this gate agree on.
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

type AuthMiddleware struct {
	DB     *gorm.DB
	Tokens *tokens.Issuer
}

func NewAuthMiddleware(db *gorm.DB, issuer *tokens.Issuer) *AuthMiddleware {
	return &AuthMiddleware{DB: db, Tokens: issuer}
}

func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "http://localhost:3000,http://127.0.0.1:3000",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,PATCH,DELETE,OPTIONS",
	})
}

// RequireAuth accepts the access token from the session cookie or an
// Authorization bearer header, verifies it and re-checks the identity
// against the store before attaching it to the request.
func (a *AuthMiddleware) RequireAuth(c *fiber.Ctx) error {
	tokenString := extractAccessToken(c)
	if tokenString == "" {
		logger.Warn("access_token_missing", map[string]interface{}{
			"ip":   c.IP(),
			"path": c.Path(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "missing access token")
	}

	claims, err := a.Tokens.ValidateAccessToken(tokenString)
	if err != nil {
		logger.Warn("access_token_invalid", map[string]interface{}{
			"ip":    c.IP(),
			"path":  c.Path(),
			"error": err.Error(),
		})
		return utils.Error(c, fiber.StatusUnauthorized, "invalid or expired access token")
	}

	var user models.User
	if err := a.DB.First(&user, "id = ?", claims.UserID).Error; err != nil {
		logger.Warn("access_token_user_not_found", map[string]interface{}{
			"ip":      c.IP(),
			"path":    c.Path(),
			"user_id": claims.UserID,
		})
		return utils.Error(c, fiber.StatusUnauthorized, "user not found")
	}

	c.Locals(currentUserKey, &user)
	c.Locals("userID", user.ID.String())
	return c.Next()
}

func extractAccessToken(c *fiber.Ctx) string {
	if cookie := c.Cookies(AccessTokenCookie); cookie != "" {
		return cookie
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return ""
	}
	tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
	if tokenString == authHeader {
		return ""
	}
	return tokenString
}

func GetCurrentUser(c *fiber.Ctx) *models.User {
	value := c.Locals(currentUserKey)
	if value == nil {
		return nil
	}
	user, ok := value.(*models.User)
	if !ok {
		return nil
	}
	return user
}
