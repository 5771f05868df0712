package models

import (
	"time"

	"github.com/cantalab/leadflow/utils"
	"gorm.io/gorm"
)

// MessageSender identifies who produced a conversation entry
type MessageSender string

const (
	MessageSenderLead     MessageSender = "lead"
	MessageSenderBusiness MessageSender = "business"
	MessageSenderSystem   MessageSender = "system"
)

// Valid checks if the sender is valid.
func (s MessageSender) Valid() bool {
	switch s {
	case MessageSenderLead, MessageSenderBusiness, MessageSenderSystem:
		return true
	default:
		return false
	}
}

// LeadMessage is one append-only conversation record of a lead
// Table: lead_messages
// Indices: (lead_id, timestamp)
// MediaType/MediaURL are set only for media messages
type LeadMessage struct {
	ID        uint          `gorm:"primaryKey;autoIncrement" json:"id"`
	LeadID    uint          `gorm:"not null;index:idx_lead_messages_lead_ts,priority:1" json:"leadId"`
	Content   string        `gorm:"type:text;not null;default:''" json:"content"`
	MediaType *string       `gorm:"size:16" json:"mediaType,omitempty"`
	MediaURL  *string       `gorm:"type:text" json:"mediaUrl,omitempty"`
	Sender    MessageSender `gorm:"size:16;not null" json:"sender"`
	Timestamp time.Time     `gorm:"not null;index:idx_lead_messages_lead_ts,priority:2" json:"timestamp"`
}

func (LeadMessage) TableName() string { return "lead_messages" }

// BeforeCreate stamps the message when the caller left the time empty
func (m *LeadMessage) BeforeCreate(tx *gorm.DB) error {
	if m.Timestamp.IsZero() {
		m.Timestamp = utils.UTCNow()
	}
	return nil
}

// LeadMessageFilter represents filter criteria for lead message queries
type LeadMessageFilter struct {
	ID     *uint          `json:"id,omitempty"`
	LeadID *uint          `json:"lead_id,omitempty"`
	Sender *MessageSender `json:"sender,omitempty"`
	After  *time.Time     `json:"after,omitempty"`
	Before *time.Time     `json:"before,omitempty"`
}
