package dto

// WhatsAppStatusResponse reports the channel state and the pairing QR, if any
type WhatsAppStatusResponse struct {
	Status string `json:"status"`
	QR     string `json:"qr"`
}

// WhatsAppNumberResponse returns the phone number of the paired session
type WhatsAppNumberResponse struct {
	Phone string `json:"phone"`
}

// SendMessageRequest sends free text to a lead outside of any sequence
type SendMessageRequest struct {
	LeadID  uint   `json:"leadId" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// SendMessageResponse echoes the recorded outbound message
type SendMessageResponse struct {
	LeadID    uint   `json:"leadId"`
	Phone     string `json:"phone"`
	MessageID uint   `json:"messageId"`
	SentAt    string `json:"sentAt"`
}

// MarkReadRequest clears the unread counter of a lead
type MarkReadRequest struct {
	LeadID uint `json:"leadId" validate:"required"`
}
