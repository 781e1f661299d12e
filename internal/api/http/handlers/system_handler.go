package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/senseirm/internal/api/dto"
	"github.com/spec-kit/senseirm/internal/auth"
	"github.com/spec-kit/senseirm/internal/service"
	apperrors "github.com/spec-kit/senseirm/pkg/util"
)

// SystemHandler exposes branding settings, logo upload and dashboard totals.
type SystemHandler struct {
	system *service.SystemService
}

// NewSystemHandler constructs handler.
func NewSystemHandler(system *service.SystemService) *SystemHandler {
	return &SystemHandler{system: system}
}

// Settings handles GET /api/system/settings. Anonymous callers get the public subset.
func (h *SystemHandler) Settings(c *fiber.Ctx) error {
	identity, _ := auth.IdentityFromContext(c)
	settings, err := h.system.Settings(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(settings)
}

// UpdateSettings handles PUT /api/system/settings.
func (h *SystemHandler) UpdateSettings(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.SettingsRequest
	if err := bindJSON(c, &req); err != nil {
		return err
	}
	settings, err := h.system.UpdateSettings(c.UserContext(), identity, service.SettingsInput{
		CompanySlogan:    req.CompanySlogan,
		PrimaryColor:     req.PrimaryColor,
		SecondaryColor:   req.SecondaryColor,
		DeveloperWebsite: req.DeveloperWebsite,
		DeveloperEmail:   req.DeveloperEmail,
		DeveloperPhone:   req.DeveloperPhone,
		LicenseType:      req.LicenseType,
		LicenseExpiry:    req.LicenseExpiry,
		CompanyLogo:      req.CompanyLogo,
		DeveloperLogo:    req.DeveloperLogo,
	})
	if err != nil {
		return err
	}
	return c.JSON(settings)
}

// UploadLogo handles POST /api/system/upload-logo with a multipart "logo" file.
func (h *SystemHandler) UploadLogo(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	file, err := c.FormFile("logo")
	if err != nil {
		return apperrors.NewValidationError("logo file is required", map[string]any{"field": "logo", "reason": err.Error()})
	}
	body, err := file.Open()
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	defer body.Close()

	result, err := h.system.UploadLogo(c.UserContext(), identity, service.LogoUpload{
		Target:      service.LogoTarget(c.FormValue("target")),
		Filename:    file.Filename,
		ContentType: file.Header.Get(fiber.HeaderContentType),
		Size:        file.Size,
		Body:        body,
	})
	if err != nil {
		return err
	}
	return c.JSON(result)
}

// Stats handles GET /api/system/stats.
func (h *SystemHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.system.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(stats)
}
