package handlers

import (
	"github.com/cantalab/leadflow/app/dto"
	businessflow "github.com/cantalab/leadflow/business_flow"
	"github.com/gofiber/fiber/v3"
)

// AppConfigHandler reads and updates the runtime switches
type AppConfigHandler struct {
	baseHandler
	flow businessflow.AppConfigFlow
}

func NewAppConfigHandler(flow businessflow.AppConfigFlow) *AppConfigHandler {
	return &AppConfigHandler{baseHandler: newBaseHandler(), flow: flow}
}

func (h *AppConfigHandler) Get(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/config")
	defer cancel()

	result, err := h.flow.GetConfig(ctx)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load configuration", "APP_CONFIG_LOOKUP_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Configuration retrieved successfully", result)
}

func (h *AppConfigHandler) Update(c fiber.Ctx) error {
	var req dto.AppConfigDTO
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/config")
	defer cancel()

	result, err := h.flow.UpdateConfig(ctx, &req, h.metadata(c))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to save configuration", "APP_CONFIG_SAVE_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Configuration updated successfully", result)
}
