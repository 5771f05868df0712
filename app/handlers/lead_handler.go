package handlers

import (
	"errors"
	"fmt"

	"github.com/cantalab/leadflow/app/dto"
	businessflow "github.com/cantalab/leadflow/business_flow"
	"github.com/gofiber/fiber/v3"
)

// LeadHandlerInterface defines the contract for lead handlers
type LeadHandlerInterface interface {
	List(c fiber.Ctx) error
	Get(c fiber.Ctx) error
	Messages(c fiber.Ctx) error
	Enroll(c fiber.Ctx) error
	Export(c fiber.Ctx) error
}

// LeadHandler handles lead listing, conversation history and enrollment
type LeadHandler struct {
	baseHandler
	flow businessflow.LeadFlow
}

func NewLeadHandler(flow businessflow.LeadFlow) *LeadHandler {
	return &LeadHandler{baseHandler: newBaseHandler(), flow: flow}
}

func listLeadsRequest(c fiber.Ctx) *dto.ListLeadsRequest {
	req := &dto.ListLeadsRequest{}
	if v := c.Query("estado"); v != "" {
		req.State = &v
	}
	if v := c.Query("etiqueta"); v != "" {
		req.Label = &v
	}
	req.PageRequest = paging(c)
	return req
}

// List returns a page of leads, newest first. Filters: estado, etiqueta.
func (h *LeadHandler) List(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/leads")
	defer cancel()

	result, err := h.flow.ListLeads(ctx, listLeadsRequest(c))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list leads", "LIST_LEADS_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Leads retrieved successfully", result)
}

func (h *LeadHandler) Get(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id")
	defer cancel()

	result, err := h.flow.GetLead(ctx, id)
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load lead", "GET_LEAD_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Lead retrieved successfully", result)
}

// Messages returns the conversation of a lead, oldest first
func (h *LeadHandler) Messages(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}
	req := &dto.ListLeadMessagesRequest{LeadID: id}
	req.PageRequest = paging(c)

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/messages")
	defer cancel()

	result, err := h.flow.ListMessages(ctx, req)
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to list messages", "LIST_MESSAGES_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Messages retrieved successfully", result)
}

// Enroll starts a lead on a sequence
func (h *LeadHandler) Enroll(c fiber.Ctx) error {
	id, ok := pathID(c, "id")
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead id", "INVALID_LEAD_ID", nil)
	}
	var req dto.EnrollLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}
	req.LeadID = id

	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/:id/sequences")
	defer cancel()

	result, err := h.flow.Enroll(ctx, &req, h.metadata(c))
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		if businessflow.IsSequenceNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Sequence not found", "SEQUENCE_NOT_FOUND", nil)
		}
		var be *businessflow.BusinessError
		if errors.As(err, &be) {
			switch be.Code {
			case "INVALID_TRIGGER", "INVALID_START_TIME":
				return h.ErrorResponse(c, fiber.StatusBadRequest, be.Message, be.Code, nil)
			}
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to enroll lead", "ENROLL_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, result.Message, result.Lead)
}

// Export downloads the leads matching the list filters as XLSX
func (h *LeadHandler) Export(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/leads/export")
	defer cancel()

	filename, data, err := h.flow.ExportLeads(ctx, listLeadsRequest(c))
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to export leads", "EXPORT_LEADS_FAILED", nil)
	}

	c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return c.Status(fiber.StatusOK).Send(data)
}
