package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/pkg/utils"
	"gorm.io/gorm"
)

type DashboardHandler struct {
	DB *gorm.DB
}

func NewDashboardHandler(db *gorm.DB) *DashboardHandler {
	return &DashboardHandler{DB: db}
}

// Get returns per-user counters computed at read time. The dashboard is
// a derived view, not authoritative state.
func (h *DashboardHandler) Get(c *fiber.Ctx) error {
	userID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var user models.User
	if err := h.DB.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "user not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching user")
	}

	var totalUploads int64
	if err := h.DB.Model(&models.Design{}).Where("user_id = ?", userID).Count(&totalUploads).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting uploads")
	}

	var totalGeneratedCodes int64
	if err := h.DB.Model(&models.Code{}).Where("user_id = ?", userID).Count(&totalGeneratedCodes).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting generated codes")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"userID":              userID,
		"totalUploads":        totalUploads,
		"totalGeneratedCodes": totalGeneratedCodes,
	})
}
