package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/storage"
	"github.com/sketchcode/backend/pkg/logger"
	"github.com/sketchcode/backend/pkg/utils"
	"gorm.io/gorm"
)

type DesignsHandler struct {
	DB      *gorm.DB
	Storage storage.ObjectStore
}

func NewDesignsHandler(db *gorm.DB, store storage.ObjectStore) *DesignsHandler {
	return &DesignsHandler{DB: db, Storage: store}
}

// Create uploads the design image to the blob store and persists the
// design with status pending.
func (h *DesignsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	title := strings.TrimSpace(c.FormValue("title"))
	description := strings.TrimSpace(c.FormValue("description"))
	if title == "" || description == "" {
		return utils.Error(c, fiber.StatusBadRequest, "title and description are required")
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "image file is required")
	}

	upload, stream, err := imageUploadFromForm(fileHeader, currentUser.ID.String())
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed reading image file")
	}
	defer stream.Close()

	imageURL, err := h.Storage.Upload(c.Context(), upload.ObjectName, upload.Reader, upload.Size, upload.ContentType)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed uploading design image")
	}

	design := models.Design{
		Title:       title,
		Description: description,
		ImageURL:    imageURL,
		Status:      models.DesignStatusPending,
		UserID:      currentUser.ID,
	}

	if err := h.DB.Create(&design).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating design")
	}

	logger.InfoWithUser(currentUser.ID.String(), "design_created", map[string]interface{}{
		"design_id": design.ID.String(),
		"title":     title,
	})

	return utils.Success(c, fiber.StatusCreated, design)
}

func (h *DesignsHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	var total int64
	if err := h.DB.Model(&models.Design{}).Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting designs")
	}

	var designs []models.Design
	query := h.DB.Preload("User").Order("created_at DESC")
	if err := utils.ApplyPagination(query, p).Find(&designs).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing designs")
	}

	return utils.Paginated(c, designs, p.Page, p.Limit, total)
}

func (h *DesignsHandler) Get(c *fiber.Ctx) error {
	designID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid design id")
	}

	var design models.Design
	if err := h.DB.Preload("User").First(&design, "id = ?", designID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "design not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching design")
	}

	return utils.Success(c, fiber.StatusOK, design)
}

// Update replaces title/description/status, and the image when a new
// file is attached.
func (h *DesignsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	designID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid design id")
	}

	var design models.Design
	if err := h.DB.First(&design, "id = ?", designID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "design not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching design")
	}

	updates := map[string]interface{}{}
	if title := strings.TrimSpace(c.FormValue("title")); title != "" {
		updates["title"] = title
	}
	if description := strings.TrimSpace(c.FormValue("description")); description != "" {
		updates["description"] = description
	}
	if status := strings.TrimSpace(c.FormValue("status")); status != "" {
		switch models.DesignStatus(status) {
		case models.DesignStatusPending, models.DesignStatusInProgress, models.DesignStatusCompleted:
			updates["status"] = status
		default:
			return utils.Error(c, fiber.StatusBadRequest, "invalid status")
		}
	}

	if fileHeader, err := c.FormFile("image"); err == nil {
		upload, stream, err := imageUploadFromForm(fileHeader, currentUser.ID.String())
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "failed reading image file")
		}
		defer stream.Close()

		imageURL, err := h.Storage.Upload(c.Context(), upload.ObjectName, upload.Reader, upload.Size, upload.ContentType)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "failed uploading design image")
		}
		updates["image_url"] = imageURL
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&design).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating design")
	}

	var updated models.Design
	if err := h.DB.First(&updated, "id = ?", designID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated design")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *DesignsHandler) Delete(c *fiber.Ctx) error {
	designID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid design id")
	}

	result := h.DB.Delete(&models.Design{}, "id = ?", designID)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting design")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "design not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "design deleted"})
}
