package handlers

import (
	"errors"
	"os"

	"github.com/cantalab/leadflow/app/services"
	"github.com/gofiber/fiber/v3"
)

const mediaMaxAge = 86400

// MediaHandler serves inbound media stored by the WhatsApp handler
type MediaHandler struct {
	baseHandler
	storage services.MediaStorage
}

func NewMediaHandler(storage services.MediaStorage) *MediaHandler {
	return &MediaHandler{baseHandler: newBaseHandler(), storage: storage}
}

// Serve streams the file under /media/*, honouring Range requests
func (h *MediaHandler) Serve(c fiber.Ctx) error {
	path, err := h.storage.Resolve(c.Params("*"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidMediaKey):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid media path", "INVALID_MEDIA_KEY", nil)
		case errors.Is(err, os.ErrNotExist):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Media not found", "MEDIA_NOT_FOUND", nil)
		}
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to read media", "MEDIA_READ_FAILED", nil)
	}

	return c.SendFile(path, fiber.SendFile{
		ByteRange: true,
		MaxAge:    mediaMaxAge,
	})
}
