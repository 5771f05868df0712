// Package models contains domain entities persisted by the CRM
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cantalab/leadflow/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Lead is a contact reached over WhatsApp, bound 1:1 to a phone number.
// Table: leads
// Unique by phone and uuid; active_sequences is a nullable jsonb array of enrollments.
// Leads are never deleted by the application.
type Lead struct {
	ID   uint      `gorm:"primaryKey" json:"id"`
	UUID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:uk_leads_uuid" json:"uuid"`

	Phone  string         `gorm:"size:32;not null;uniqueIndex:uk_leads_phone" json:"telefono"`
	Name   string         `gorm:"size:255" json:"nombre"`
	Source string         `gorm:"size:64" json:"source"`
	State  string         `gorm:"size:64;index:idx_leads_state" json:"estado"`
	Labels pq.StringArray `gorm:"type:text[];not null;default:'{}'" json:"etiquetas"`

	UnreadCount     int            `gorm:"not null;default:0" json:"unreadCount"`
	LastMessageAt   *time.Time     `gorm:"index:idx_leads_last_message_at" json:"lastMessageAt,omitempty"`
	ActiveSequences datatypes.JSON `gorm:"type:jsonb" json:"secuenciasActivas"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_leads_created_at" json:"fecha_creacion"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}

// BeforeCreate ensures UUID, labels and timestamps are set
func (l *Lead) BeforeCreate(tx *gorm.DB) error {
	if l.UUID == uuid.Nil {
		l.UUID = uuid.New()
	}
	if l.Labels == nil {
		l.Labels = pq.StringArray{}
	}
	if l.CreatedAt.IsZero() {
		l.CreatedAt = utils.UTCNow()
	}
	if l.UpdatedAt.IsZero() {
		l.UpdatedAt = l.CreatedAt
	}
	return nil
}

// HasLabel reports whether label is attached to the lead
func (l *Lead) HasLabel(label string) bool {
	for _, existing := range l.Labels {
		if existing == label {
			return true
		}
	}
	return false
}

// Enrollments decodes the active sequence collection.
// A NULL or JSON null column yields an empty slice.
func (l *Lead) Enrollments() ([]SequenceEnrollment, error) {
	if len(l.ActiveSequences) == 0 || string(l.ActiveSequences) == "null" {
		return []SequenceEnrollment{}, nil
	}
	var out []SequenceEnrollment
	if err := json.Unmarshal(l.ActiveSequences, &out); err != nil {
		return nil, fmt.Errorf("malformed active sequences for lead %d: %w", l.ID, err)
	}
	return out, nil
}

// SetEnrollments replaces the active sequence collection
func (l *Lead) SetEnrollments(enrollments []SequenceEnrollment) error {
	if enrollments == nil {
		enrollments = []SequenceEnrollment{}
	}
	raw, err := json.Marshal(enrollments)
	if err != nil {
		return err
	}
	l.ActiveSequences = datatypes.JSON(raw)
	return nil
}

// Attributes exposes the lead fields that message templates can reference, keyed by their JSON names.
// Labels render comma separated and timestamps as RFC3339 UTC; unset timestamps are omitted.
func (l *Lead) Attributes() map[string]string {
	attrs := map[string]string{
		"telefono":    l.Phone,
		"nombre":      l.Name,
		"source":      l.Source,
		"estado":      l.State,
		"etiquetas":   strings.Join(l.Labels, ","),
		"unreadCount": strconv.Itoa(l.UnreadCount),
	}
	if l.UUID != uuid.Nil {
		attrs["id"] = l.UUID.String()
	}
	if !l.CreatedAt.IsZero() {
		attrs["fecha_creacion"] = utils.FormatUTC(l.CreatedAt)
	}
	if l.LastMessageAt != nil {
		attrs["lastMessageAt"] = utils.FormatUTC(*l.LastMessageAt)
	}
	return attrs
}

// LeadFilter represents filter criteria for lead queries
type LeadFilter struct {
	ID                 *uint
	UUID               *uuid.UUID
	Phone              *string
	State              *string
	Label              *string
	HasActiveSequences *bool
	CreatedAfter       *time.Time
	CreatedBefore      *time.Time
}
