// Package businessflow contains the CRM use cases behind the HTTP API and the WhatsApp inbound handler
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Lead-related errors
	ErrLeadNotFound     = errors.New("lead not found")
	ErrLeadWithoutPhone = errors.New("lead has no phone number")
	ErrLeadIDRequired   = errors.New("lead id is required")
	ErrMessageRequired  = errors.New("message is required")

	// Channel errors
	ErrWhatsAppNotConnected = errors.New("whatsapp is not connected")
	ErrSendFailed           = errors.New("failed to send whatsapp message")

	// Sequence-related errors
	ErrSequenceNotFound     = errors.New("sequence not found")
	ErrInvalidSequence      = errors.New("invalid sequence definition")
	ErrSequenceSeedNotFound = errors.New("sequence seed file not found")

	// Lyric request errors
	ErrLyricRequestNotFound = errors.New("lyric request not found")
	ErrInvalidLyricStatus   = errors.New("invalid lyric request status")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

func IsLeadWithoutPhone(err error) bool {
	return errors.Is(err, ErrLeadWithoutPhone)
}

func IsWhatsAppNotConnected(err error) bool {
	return errors.Is(err, ErrWhatsAppNotConnected)
}

func IsSequenceNotFound(err error) bool {
	return errors.Is(err, ErrSequenceNotFound)
}

func IsInvalidSequence(err error) bool {
	return errors.Is(err, ErrInvalidSequence)
}

func IsLyricRequestNotFound(err error) bool {
	return errors.Is(err, ErrLyricRequestNotFound)
}
