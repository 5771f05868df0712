// Package handlers contains HTTP request handlers and presentation layer logic for the API endpoints
package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cantalab/leadflow/app/dto"
	businessflow "github.com/cantalab/leadflow/business_flow"
	"github.com/cantalab/leadflow/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

const defaultRequestTimeout = 30 * time.Second

// baseHandler carries the response helpers shared by every handler
type baseHandler struct {
	validator *validator.Validate
}

func newBaseHandler() baseHandler {
	return baseHandler{validator: validator.New()}
}

func (h *baseHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *baseHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// validate runs struct validation and writes the 400 response; it reports whether the request is valid
func (h *baseHandler) validate(c fiber.Ctx, req any) (bool, error) {
	if err := h.validator.Struct(req); err != nil {
		var fieldErrors validator.ValidationErrors
		if !errors.As(err, &fieldErrors) {
			return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", err.Error())
		}
		validationErrors := make([]string, 0, len(fieldErrors))
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, getValidationErrorMessage(fe))
		}
		return false, h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}
	return true, nil
}

func (h *baseHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(c.Get(businessflow.RequestIDKey))
	return metadata
}

func (h *baseHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, defaultRequestTimeout)
}

func (h *baseHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, c.Get("X-Request-ID"))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	return ctx, cancel
}

// paging reads page and page_size query parameters, ignoring malformed values
func paging(c fiber.Ctx) dto.PageRequest {
	var p dto.PageRequest
	if v := c.Query("page"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			p.Page = uint(n)
		}
	}
	if v := c.Query("page_size"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			p.PageSize = uint(n)
		}
	}
	return p
}

// pathID parses a positive numeric route parameter
func pathID(c fiber.Ctx, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Params(name), 10, 64)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint(n), true
}

func getValidationErrorMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return err.Field() + " is required"
	case "min":
		return err.Field() + " must be at least " + err.Param() + " characters"
	case "max":
		return err.Field() + " must be at most " + err.Param() + " characters"
	case "oneof":
		return err.Field() + " must be one of: " + err.Param()
	case "numeric":
		return err.Field() + " must contain only numbers"
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", err.Field(), err.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", err.Field(), err.Param())
	default:
		return err.Field() + " is invalid"
	}
}
