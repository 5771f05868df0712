package handlers

import (
	"errors"

	"github.com/cantalab/leadflow/app/dto"
	businessflow "github.com/cantalab/leadflow/business_flow"
	"github.com/gofiber/fiber/v3"
)

// WhatsAppHandlerInterface defines the contract for channel handlers
type WhatsAppHandlerInterface interface {
	Status(c fiber.Ctx) error
	Number(c fiber.Ctx) error
	SendMessage(c fiber.Ctx) error
	MarkRead(c fiber.Ctx) error
}

// WhatsAppHandler handles WhatsApp session and direct messaging requests
type WhatsAppHandler struct {
	baseHandler
	flow businessflow.WhatsAppFlow
}

func NewWhatsAppHandler(flow businessflow.WhatsAppFlow) *WhatsAppHandler {
	return &WhatsAppHandler{baseHandler: newBaseHandler(), flow: flow}
}

// Status returns the connection state and, while pairing, the QR payload.
// The body is not wrapped in APIResponse; the CRM frontend polls it as {status, qr}.
func (h *WhatsAppHandler) Status(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/whatsapp/status")
	defer cancel()

	result, err := h.flow.Status(ctx)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read WhatsApp status", "STATUS_FAILED", nil)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// Number returns the phone number of the paired session, or 503 while disconnected
func (h *WhatsAppHandler) Number(c fiber.Ctx) error {
	ctx, cancel := h.createRequestContext(c, "/api/v1/whatsapp/number")
	defer cancel()

	result, err := h.flow.Number(ctx)
	if err != nil {
		if businessflow.IsWhatsAppNotConnected(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "WhatsApp is not connected", "WHATSAPP_NOT_CONNECTED", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read WhatsApp number", "NUMBER_FAILED", nil)
	}
	return c.Status(fiber.StatusOK).JSON(result)
}

// SendMessage sends free text to a lead and records it as a business message
func (h *WhatsAppHandler) SendMessage(c fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/whatsapp/send-message")
	defer cancel()

	result, err := h.flow.SendMessage(ctx, &req, h.metadata(c))
	if err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		if businessflow.IsLeadWithoutPhone(err) {
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Lead has no phone number", "LEAD_WITHOUT_PHONE", nil)
		}
		if businessflow.IsWhatsAppNotConnected(err) {
			return h.ErrorResponse(c, fiber.StatusServiceUnavailable, "WhatsApp is not connected", "WHATSAPP_NOT_CONNECTED", nil)
		}
		var be *businessflow.BusinessError
		if errors.As(err, &be) {
			switch be.Code {
			case "INVALID_REQUEST":
				return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request", be.Code, be.Message)
			case "SEND_FAILED":
				return h.ErrorResponse(c, fiber.StatusBadGateway, "Failed to send WhatsApp message", be.Code, nil)
			}
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to send message", "SEND_MESSAGE_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Message sent successfully", result)
}

// MarkRead clears the unread counter of a lead
func (h *WhatsAppHandler) MarkRead(c fiber.Ctx) error {
	var req dto.MarkReadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}
	if ok, err := h.validate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/whatsapp/mark-read")
	defer cancel()

	if err := h.flow.MarkRead(ctx, &req, h.metadata(c)); err != nil {
		if businessflow.IsLeadNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to mark messages as read", "MARK_READ_FAILED", nil)
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Messages marked as read", fiber.Map{"leadId": req.LeadID})
}
