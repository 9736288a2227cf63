package handlers

import (
	"errors"
	"net/mail"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/storage"
	"github.com/sketchcode/backend/pkg/logger"
	"github.com/sketchcode/backend/pkg/utils"
	"gorm.io/gorm"
)

type UsersHandler struct {
	DB      *gorm.DB
	Storage storage.ObjectStore
}

func NewUsersHandler(db *gorm.DB, store storage.ObjectStore) *UsersHandler {
	return &UsersHandler{DB: db, Storage: store}
}

func (h *UsersHandler) Me(c *fiber.Ctx) error {
	user := middleware.GetCurrentUser(c)
	if user == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type updateUserRequest struct {
	FullName *string `json:"fullName"`
	Username *string `json:"username"`
	Email    *string `json:"email"`
}

func (h *UsersHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.FullName != nil {
		value := strings.TrimSpace(*req.FullName)
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "fullName cannot be empty")
		}
		updates["full_name"] = value
	}
	if req.Username != nil {
		value := strings.ToLower(strings.TrimSpace(*req.Username))
		if value == "" {
			return utils.Error(c, fiber.StatusBadRequest, "username cannot be empty")
		}
		var other models.User
		if err := h.DB.First(&other, "username = ? AND id <> ?", value, currentUser.ID).Error; err == nil {
			return utils.Error(c, fiber.StatusConflict, "username already taken")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusInternalServerError, "failed validating username")
		}
		updates["username"] = value
	}
	if req.Email != nil {
		value := strings.ToLower(strings.TrimSpace(*req.Email))
		if _, err := mail.ParseAddress(value); err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid email")
		}
		var other models.User
		if err := h.DB.First(&other, "email = ? AND id <> ?", value, currentUser.ID).Error; err == nil {
			return utils.Error(c, fiber.StatusConflict, "email already registered")
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusInternalServerError, "failed validating email")
		}
		updates["email"] = value
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
	}

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated user")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

// Delete removes the account. Designs and codes owned by the user are
// left behind as orphans.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.DB.Delete(&models.User{}, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting user")
	}

	logger.InfoWithUser(currentUser.ID.String(), "user_deleted", map[string]interface{}{
		"username": currentUser.Username,
	})

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deleted"})
}

func (h *UsersHandler) UpdateAvatar(c *fiber.Ctx) error {
	return h.updateImage(c, "avatar", "avatar_url")
}

func (h *UsersHandler) UpdateCoverImage(c *fiber.Ctx) error {
	return h.updateImage(c, "coverImage", "cover_image_url")
}

func (h *UsersHandler) updateImage(c *fiber.Ctx, field, column string) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	fileHeader, err := c.FormFile(field)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, field+" file is required")
	}

	upload, stream, err := imageUploadFromForm(fileHeader, currentUser.ID.String())
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading "+field+" file")
	}
	defer stream.Close()

	url, err := h.Storage.Upload(c.Context(), upload.ObjectName, upload.Reader, upload.Size, upload.ContentType)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed uploading "+field)
	}

	if err := h.DB.Model(&models.User{}).Where("id = ?", currentUser.ID).Update(column, url).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating user")
	}

	var updated models.User
	if err := h.DB.First(&updated, "id = ?", currentUser.ID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated user")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

// ImageHistory lists the user's uploaded designs together with the code
// generated for each.
func (h *UsersHandler) ImageHistory(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	var designs []models.Design
	if err := h.DB.Where("user_id = ?", currentUser.ID).Order("created_at DESC").Find(&designs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching image history")
	}

	history := make([]fiber.Map, 0, len(designs))
	for _, design := range designs {
		history = append(history, fiber.Map{
			"imageURL":      design.ImageURL,
			"generatedCode": design.GeneratedCode,
			"status":        design.Status,
			"createdAt":     design.CreatedAt,
		})
	}

	return utils.Success(c, fiber.StatusOK, history)
}
