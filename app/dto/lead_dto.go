package dto

// SequenceEnrollmentDTO is a lead's position within one sequence
type SequenceEnrollmentDTO struct {
	Trigger   string `json:"trigger"`
	StartTime string `json:"startTime"`
	Index     int    `json:"index"`
	Completed bool   `json:"completed,omitempty"`
}

// LeadDTO is the CRM view of a lead.
// ActiveSequences is nil when the stored collection cannot be decoded.
type LeadDTO struct {
	ID              uint                    `json:"id"`
	UUID            string                  `json:"uuid"`
	Phone           string                  `json:"telefono"`
	Name            string                  `json:"nombre"`
	Source          string                  `json:"source"`
	State           string                  `json:"estado"`
	Labels          []string                `json:"etiquetas"`
	UnreadCount     int                     `json:"unreadCount"`
	LastMessageAt   *string                 `json:"lastMessageAt,omitempty"`
	ActiveSequences []SequenceEnrollmentDTO `json:"secuenciasActivas"`
	CreatedAt       string                  `json:"fecha_creacion"`
}

// ListLeadsRequest filters the lead listing. Label and State match exactly.
type ListLeadsRequest struct {
	State *string `json:"estado,omitempty"`
	Label *string `json:"etiqueta,omitempty"`
	PageRequest
}

// ListLeadsResponse is one page of leads
type ListLeadsResponse struct {
	Leads    []LeadDTO `json:"leads"`
	Total    int64     `json:"total"`
	Page     uint      `json:"page"`
	PageSize uint      `json:"page_size"`
}

// LeadMessageDTO is one conversation entry
type LeadMessageDTO struct {
	ID        uint    `json:"id"`
	Content   string  `json:"content"`
	MediaType *string `json:"mediaType,omitempty"`
	MediaURL  *string `json:"mediaUrl,omitempty"`
	Sender    string  `json:"sender"`
	Timestamp string  `json:"timestamp"`
}

// ListLeadMessagesRequest pages through a lead's conversation, oldest first
type ListLeadMessagesRequest struct {
	LeadID uint `json:"leadId"`
	PageRequest
}

// ListLeadMessagesResponse holds the requested page of messages
type ListLeadMessagesResponse struct {
	LeadID   uint             `json:"leadId"`
	Messages []LeadMessageDTO `json:"messages"`
}

// EnrollLeadRequest starts a lead on the sequence bound to Trigger.
// StartTime defaults to now. SendNow evaluates the lead immediately instead of waiting for the next tick.
type EnrollLeadRequest struct {
	LeadID    uint    `json:"-"`
	Trigger   string  `json:"trigger" validate:"required,max=128"`
	StartTime *string `json:"startTime,omitempty" validate:"omitempty"`
	SendNow   bool    `json:"sendNow,omitempty"`
}

// EnrollLeadResponse returns the lead after enrollment
type EnrollLeadResponse struct {
	Message     string  `json:"message"`
	Lead        LeadDTO `json:"lead"`
	AdvancedNow bool    `json:"advancedNow"`
}
