package handlers

import (
	"errors"

	"github.com/cantalab/leadflow/app/dto"
	businessflow "github.com/cantalab/leadflow/business_flow"
	"github.com/gofiber/fiber/v3"
)

// LyricRequestHandlerInterface defines the contract for lyric request handlers
type LyricRequestHandlerInterface interface {
	Create(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	List(c fiber.Ctx) error
}

// LyricRequestHandler handles lyric request intake and listing
type LyricRequestHandler struct {
	baseHandler
	flow businessflow.LyricRequestFlow
}

func NewLyricRequestHandler(flow businessflow.LyricRequestFlow) *LyricRequestHandler {
	return &LyricRequestHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Create queues a lyric request; the scheduler generates and delivers it
func (h *LyricRequestHandler) Create(c fiber.Ctx) error {
	var req dto.CreateLyricRequestRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/lyric-requests")
	defer cancel()

	result, err := h.flow.CreateLyricRequest(ctx, &req, h.metadata(c))
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		var be *businessflow.BusinessError
		if errors.As(err, &be) {
			switch be.Code {
			case "INVALID_PURPOSE", "INVALID_PHONE":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
			}
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to create lyric request", "CREATE_LYRIC_REQUEST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Lyric request created successfully", result)
}

func (h *LyricRequestHandler) Get(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lyric request id", "INVALID_LYRIC_REQUEST_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/lyric-requests/:id")
	defer cancel()

	result, err := h.flow.GetLyricRequest(ctx, id)
	if err != nil {
		if businessflow.IsLyricRequestNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lyric request not found", "LYRIC_REQUEST_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load lyric request", "GET_LYRIC_REQUEST_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lyric request retrieved successfully", result)
}

// List returns lyric requests newest first, optionally filtered by status
func (h *LyricRequestHandler) List(c fiber.Ctx) error {
	req := &dto.ListLyricRequestsRequest{}
	if v := c.Query("status"); v != "" {
		req.Status = &v
	}
	req.PageRequest = paging(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/lyric-requests")
	defer cancel()

	result, err := h.flow.ListLyricRequests(ctx, req)
	if err != nil {
		var be *businessflow.BusinessError
		if errors.As(err, &be) && be.Code == "INVALID_STATUS" {
			return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list lyric requests", "LIST_LYRIC_REQUESTS_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lyric requests retrieved successfully", result)
}
