package handlers

import (
	"errors"
	"io"
	"strings"

	"github.com/cantalab/leadflow/app/dto"
	businessflow "github.com/cantalab/leadflow/business_flow"
	"github.com/gofiber/fiber/v3"
)

// SequenceHandlerInterface defines the contract for sequence handlers
type SequenceHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Upsert(c fiber.Ctx) error
	Import(c fiber.Ctx) error
}

// SequenceHandler handles sequence definition requests
type SequenceHandler struct {
	baseHandler
	flow businessflow.SequenceFlow
}

func NewSequenceHandler(flow businessflow.SequenceFlow) *SequenceHandler {
	return &SequenceHandler{baseHandler: newBaseHandler(), flow: flow}
}

func (h *SequenceHandler) sequenceError(c fiber.Ctx, err error, fallback string) error {
	if businessflow.IsSequenceNotFound(err) {
		return h.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", "SEQUENCE_NOT_FOUND", nil)
	}
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Code == "INVALID_SEQUENCE" {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid sequence definition", be.Code, be.Message)
	}
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallback, "SEQUENCE_OPERATION_FAILED", nil)
}

func (h *SequenceHandler) List(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/sequences")
	defer cancel()

	result, err := h.flow.ListSequences(ctx)
	if err != nil {
		return h.sequenceError(c, err, "Failed to list sequences")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sequences retrieved successfully", result)
}

func (h *SequenceHandler) Get(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/sequences/:trigger")
	defer cancel()

	result, err := h.flow.GetSequence(ctx, c.Params("trigger"))
	if err != nil {
		return h.sequenceError(c, err, "Failed to load sequence")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sequence retrieved successfully", result)
}

// Upsert creates or replaces the definition for the trigger in the path
func (h *SequenceHandler) Upsert(c fiber.Ctx) error {
	var req dto.SequenceDTO
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if trigger := c.Params("trigger"); trigger != "" {
		req.Trigger = trigger
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sequences/:trigger")
	defer cancel()

	result, err := h.flow.UpsertSequence(ctx, &req, h.metadata(c))
	if err != nil {
		return h.sequenceError(c, err, "Failed to save sequence")
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Sequence saved successfully", result)
}

// Import accepts a YAML document, either as the raw body or as a multipart "file" field
func (h *SequenceHandler) Import(c fiber.Ctx) error {
	data := c.Body()
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "file is required", "INVALID_REQUEST", err.Error())
		}
		f, err := fileHeader.Open()
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "File upload failed", "FILE_UPLOAD_FAILED", err.Error())
		}
		defer func() { _ = f.Close() }()
		data, err = io.ReadAll(f)
		if err != nil {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "File upload failed", "FILE_UPLOAD_FAILED", err.Error())
		}
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/sequences/import")
	defer cancel()

	result, err := h.flow.ImportYAML(ctx, data, h.metadata(c))
	if err != nil {
		return h.sequenceError(c, err, "Failed to import sequences")
	}
	return h.SuccessResponse(c, fiber.StatusOK, result.Message, result)
}
