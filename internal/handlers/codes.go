package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sketchcode/backend/internal/middleware"
	"github.com/sketchcode/backend/internal/models"
	"github.com/sketchcode/backend/internal/services"
	"github.com/sketchcode/backend/internal/storage"
	"github.com/sketchcode/backend/pkg/logger"
	"github.com/sketchcode/backend/pkg/utils"
	"gorm.io/gorm"
)

type CodesHandler struct {
	DB        *gorm.DB
	Storage   storage.ObjectStore
	Generator services.CodeGenerator
}

func NewCodesHandler(db *gorm.DB, store storage.ObjectStore, generator services.CodeGenerator) *CodesHandler {
	return &CodesHandler{DB: db, Storage: store, Generator: generator}
}

// Create uploads the design image, asks the text-generation service for
// code in the requested language, and persists the result. Nothing is
// persisted when either external call fails.
func (h *CodesHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)
	if currentUser == nil {
		return utils.Error(c, fiber.StatusUnauthorized, "unauthorized")
	}

	codeType := strings.TrimSpace(c.FormValue("codeType"))
	if codeType == "" {
		return utils.Error(c, fiber.StatusBadRequest, "codeType is required")
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

	designURL, err := h.Storage.Upload(c.Context(), upload.ObjectName, upload.Reader, upload.Size, upload.ContentType)
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "failed uploading design image")
	}

	generated, err := h.Generator.GenerateCode(c.Context(), designURL, codeType)
	if err != nil {
		logger.ErrorWithUser(currentUser.ID.String(), "code_generation_failed", err, map[string]interface{}{
			"code_type":  codeType,
			"design_url": designURL,
		})
		return utils.Error(c, fiber.StatusBadGateway, "code generation service failed")
	}

	code := models.Code{
		DesignURL:     designURL,
		GeneratedCode: generated,
		CodeType:      codeType,
		UserID:        currentUser.ID,
	}

	if err := h.DB.Create(&code).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed creating code record")
	}

	logger.InfoWithUser(currentUser.ID.String(), "code_generated", map[string]interface{}{
		"code_id":   code.ID.String(),
		"code_type": codeType,
	})

	return utils.Success(c, fiber.StatusCreated, code)
}

func (h *CodesHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)

	var total int64
	if err := h.DB.Model(&models.Code{}).Count(&total).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed counting codes")
	}

	var codes []models.Code
	query := h.DB.Preload("User").Order("created_at DESC")
	if err := utils.ApplyPagination(query, p).Find(&codes).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed listing codes")
	}

	return utils.Paginated(c, codes, p.Page, p.Limit, total)
}

func (h *CodesHandler) Get(c *fiber.Ctx) error {
	codeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid code id")
	}

	var code models.Code
	if err := h.DB.Preload("User").First(&code, "id = ?", codeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "code not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching code")
	}

	return utils.Success(c, fiber.StatusOK, code)
}

type updateCodeRequest struct {
	GeneratedCode *string `json:"generatedCode"`
	CodeType      *string `json:"codeType"`
}

func (h *CodesHandler) Update(c *fiber.Ctx) error {
	codeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid code id")
	}

	var code models.Code
	if err := h.DB.First(&code, "id = ?", codeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Error(c, fiber.StatusNotFound, "code not found")
		}
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching code")
	}

	var req updateCodeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.GeneratedCode != nil && strings.TrimSpace(*req.GeneratedCode) != "" {
		updates["generated_code"] = *req.GeneratedCode
	}
	if req.CodeType != nil && strings.TrimSpace(*req.CodeType) != "" {
		updates["code_type"] = strings.TrimSpace(*req.CodeType)
	}

	if len(updates) == 0 {
		return utils.Error(c, fiber.StatusBadRequest, "no valid fields to update")
	}

	if err := h.DB.Model(&code).Updates(updates).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed updating code")
	}

	var updated models.Code
	if err := h.DB.First(&updated, "id = ?", codeID).Error; err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed fetching updated code")
	}

	return utils.Success(c, fiber.StatusOK, updated)
}

func (h *CodesHandler) Delete(c *fiber.Ctx) error {
	codeID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid code id")
	}

	result := h.DB.Delete(&models.Code{}, "id = ?", codeID)
	if result.Error != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed deleting code")
	}
	if result.RowsAffected == 0 {
		return utils.Error(c, fiber.StatusNotFound, "code not found")
	}

	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "code deleted"})
}
