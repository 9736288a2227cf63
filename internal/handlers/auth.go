package handlers

import (
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sketchcode/backend/internal/config"
	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/services"
	"github.com/sketchcode/backend/pkg/tokens"
	"github.com/sketchcode/backend/pkg/utils"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB   *gorm.DB
	Auth *services.AuthService
	JWT  config.JWTConfig
}

func NewAuthHandler(db *gorm.DB, auth *services.AuthService, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{DB: db, Auth: auth, JWT: jwtCfg}
}

// Register handles multipart registration: text fields plus a required
// avatar file and an optional coverImage file.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	username := strings.TrimSpace(c.FormValue("username"))
	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	password := c.FormValue("password")
	fullName := strings.TrimSpace(c.FormValue("fullName"))

	if username == "" || email == "" || password == "" || fullName == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username, email, password and fullName are required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid email")
	}

	avatarHeader, err := c.FormFile("avatar")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "avatar file is required")
	}

	objectPrefix := uuid.New().String()
	avatar, avatarStream, err := imageUploadFromForm(avatarHeader, objectPrefix)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading avatar file")
	}
	defer avatarStream.Close()

	input := services.RegisterInput{
		Username: username,
		Email:    email,
		Password: password,
		FullName: fullName,
		Avatar:   avatar,
	}

	if coverHeader, err := c.FormFile("coverImage"); err == nil {
		cover, coverStream, err := imageUploadFromForm(coverHeader, objectPrefix)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "failed reading cover image file")
		}
		defer coverStream.Close()
		input.CoverImage = cover
	}

	user, err := h.Auth.Register(c.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUsernameTaken), errors.Is(err, services.ErrEmailTaken):
			return utils.Error(c, fiber.StatusConflict, err.Error())
		case errors.Is(err, services.ErrAvatarUploadFailed), errors.Is(err, services.ErrCoverImageUploadFailed):
			return utils.Error(c, fiber.StatusBadRequest, err.Error())
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed registering user")
		}
	}

	return utils.Success(c, fiber.StatusCreated, user)
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	identifier := req.Username
	if identifier == "" {
		identifier = req.Email
	}
	if identifier == "" || req.Password == "" {
		return utils.Error(c, fiber.StatusBadRequest, "username or email and password are required")
	}

	user, pair, err := h.Auth.Login(c.Context(), identifier, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		case errors.Is(err, services.ErrInvalidCredentials):
			return utils.Error(c, fiber.StatusUnauthorized, "invalid credentials")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed logging in")
		}
	}

	h.setSessionCookies(c, pair)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"user":         user,
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.Auth.Logout(c.Context(), currentUser.ID); err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed logging out")
	}

	h.clearSessionCookies(c)
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "logged out"})
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// Refresh exchanges a refresh token, taken from the session cookie or
// the request body, for a new token pair. The old refresh token is
// rotated out and can never be exchanged again.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	incoming := c.Cookies(middleware.RefreshTokenCookie)
	if incoming == "" {
		var req refreshRequest
		if err := c.BodyParser(&req); err == nil {
			incoming = req.RefreshToken
		}
	}
	if incoming == "" {
		return utils.Error(c, fiber.StatusUnauthorized, "refresh token is required")
	}

	_, pair, err := h.Auth.Refresh(c.Context(), incoming)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidRefreshToken), errors.Is(err, services.ErrRefreshTokenMismatch):
			return utils.Error(c, fiber.StatusUnauthorized, err.Error())
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed refreshing token")
		}
	}

	h.setSessionCookies(c, pair)

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"accessToken":  pair.AccessToken,
		"refreshToken": pair.RefreshToken,
	})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req changePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.OldPassword == "" || req.NewPassword == "" {
		return utils.Error(c, fiber.StatusBadRequest, "oldPassword and newPassword are required")
	}

	if err := h.Auth.ChangePassword(c.Context(), currentUser.ID, req.OldPassword, req.NewPassword); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			return utils.Error(c, fiber.StatusUnauthorized, "invalid old password")
		default:
			return utils.Error(c, fiber.StatusInternalServerError, "failed changing password")
		}
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "password changed"})
}

func (h *AuthHandler) setSessionCookies(c *fiber.Ctx, pair *tokens.Pair) {
	now := time.Now()
	c.Cookie(&fiber.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    pair.AccessToken,
		Expires:  now.Add(h.JWT.AccessTokenTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	c.Cookie(&fiber.Cookie{
		Name:     middleware.RefreshTokenCookie,
		Value:    pair.RefreshToken,
		Expires:  now.Add(h.JWT.RefreshTokenTTL),
		HTTPOnly: true,
		Secure:   true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookies(c *fiber.Ctx) {
	expired := time.Now().Add(-time.Hour)
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		c.Cookie(&fiber.Cookie{
			Name:     name,
			Value:    "",
			Expires:  expired,
			HTTPOnly: true,
			Secure:   true,
			SameSite: fiber.CookieSameSiteStrictMode,
		})
	}
}
