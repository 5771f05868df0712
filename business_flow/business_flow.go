package businessflow

import (
	"github.com/cantalab/leadflow/app/dto"
	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/utils"
	"github.com/sirupsen/logrus"
)

const RequestIDKey = "X-Request-ID"

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// ClientMetadata holds the caller details attached to API-driven changes for logging
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// fields returns the metadata as log fields; nil metadata yields none
func (cm *ClientMetadata) fields() logrus.Fields {
	if cm == nil {
		return logrus.Fields{}
	}
	return logrus.Fields{
		"ip":         cm.IPAddress,
		"user_agent": cm.UserAgent,
		"request_id": cm.RequestID,
	}
}

// ToLeadDTO converts a lead model for API responses
func ToLeadDTO(lead models.Lead) dto.LeadDTO {
	out := dto.LeadDTO{
		ID:            lead.ID,
		UUID:          lead.UUID.String(),
		Phone:         lead.Phone,
		Name:          lead.Name,
		Source:        lead.Source,
		State:         lead.State,
		Labels:        []string(lead.Labels),
		UnreadCount:   lead.UnreadCount,
		LastMessageAt: utils.FormatUTCPtr(lead.LastMessageAt),
		CreatedAt:     utils.FormatUTC(lead.CreatedAt),
	}
	if out.Labels == nil {
		out.Labels = []string{}
	}
	if enrollments, err := lead.Enrollments(); err == nil {
		out.ActiveSequences = make([]dto.SequenceEnrollmentDTO, 0, len(enrollments))
		for _, e := range enrollments {
			out.ActiveSequences = append(out.ActiveSequences, dto.SequenceEnrollmentDTO{
				Trigger:   e.Trigger,
				StartTime: utils.FormatUTC(e.StartTime),
				Index:     e.Index,
				Completed: e.Completed,
			})
		}
	}
	return out
}

// ToLeadMessageDTO converts a conversation entry
func ToLeadMessageDTO(msg models.LeadMessage) dto.LeadMessageDTO {
	return dto.LeadMessageDTO{
		ID:        msg.ID,
		Content:   msg.Content,
		MediaType: msg.MediaType,
		MediaURL:  msg.MediaURL,
		Sender:    string(msg.Sender),
		Timestamp: utils.FormatUTC(msg.Timestamp),
	}
}

// ToSequenceDTO converts a sequence definition
func ToSequenceDTO(seq models.Sequence) dto.SequenceDTO {
	out := dto.SequenceDTO{
		ID:       seq.ID,
		Trigger:  seq.Trigger,
		Name:     seq.Name,
		Messages: make([]dto.SequenceStepDTO, 0, len(seq.Steps)),
	}
	if !seq.UpdatedAt.IsZero() {
		out.UpdatedAt = utils.FormatUTC(seq.UpdatedAt)
	}
	for _, step := range seq.Steps {
		out.Messages = append(out.Messages, dto.SequenceStepDTO{
			Type:    string(step.Type),
			Content: step.Content,
			Delay:   step.Delay,
		})
	}
	return out
}

// ToLyricRequestDTO converts a lyric request
func ToLyricRequestDTO(req models.LyricRequest) dto.LyricRequestDTO {
	return dto.LyricRequestDTO{
		ID:               req.ID,
		UUID:             req.UUID.String(),
		Purpose:          req.Purpose,
		IncludeName:      req.IncludeName,
		Anecdotes:        req.Anecdotes,
		LeadID:           req.LeadID,
		LeadPhone:        req.LeadPhone,
		RequesterName:    req.RequesterName,
		Status:           string(req.Status),
		Lyric:            req.Lyric,
		LyricGeneratedAt: utils.FormatUTCPtr(req.LyricGeneratedAt),
		SentAt:           utils.FormatUTCPtr(req.SentAt),
		CreatedAt:        utils.FormatUTC(req.CreatedAt),
	}
}

// ToAppConfigDTO converts the runtime configuration; nil yields the defaults
func ToAppConfigDTO(cfg *models.AppConfig) dto.AppConfigDTO {
	if cfg == nil {
		return dto.AppConfigDTO{}
	}
	out := dto.AppConfigDTO{
		AutoSaveLeads:  cfg.AutoSaveLeads,
		DefaultTrigger: cfg.DefaultTrigger,
		AutoEnroll:     cfg.AutoEnroll,
	}
	if !cfg.UpdatedAt.IsZero() {
		out.UpdatedAt = utils.FormatUTC(cfg.UpdatedAt)
	}
	return out
}
