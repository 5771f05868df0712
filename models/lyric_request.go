package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/cantalab/leadflow/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LyricStatus is the lifecycle state of a lyric request. It only moves forward.
type LyricStatus string

const (
	LyricStatusPending   LyricStatus = "Sin letra"
	LyricStatusGenerated LyricStatus = "enviarLetra"
	LyricStatusSent      LyricStatus = "enviada"
)

// Valid checks if the status is valid.
func (s LyricStatus) Valid() bool {
	switch s {
	case LyricStatusPending, LyricStatusGenerated, LyricStatusSent:
		return true
	default:
		return false
	}
}

func (s LyricStatus) rank() int {
	switch s {
	case LyricStatusPending:
		return 0
	case LyricStatusGenerated:
		return 1
	case LyricStatusSent:
		return 2
	default:
		return -1
	}
}

// CanTransitionTo reports whether next is a forward move from s
func (s LyricStatus) CanTransitionTo(next LyricStatus) bool {
	return s.Valid() && next.Valid() && next.rank() > s.rank()
}

// Scan implements the sql.Scanner interface for LyricStatus.
func (s *LyricStatus) Scan(value any) error {
	if value == nil {
		*s = ""
		return nil
	}

	switch v := value.(type) {
	case string:
		*s = LyricStatus(v)
	case []byte:
		*s = LyricStatus(string(v))
	default:
		return fmt.Errorf("cannot scan %T into LyricStatus", value)
	}

	return nil
}

// Value implements the driver.Valuer interface for LyricStatus.
func (s LyricStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid LyricStatus: %s", s)
	}
	return string(s), nil
}

// LyricRequest asks for an AI-written song for a lead
// Table: lyric_requests
// Indices: uuid, status
// LeadID may be empty for requests captured before the lead existed
type LyricRequest struct {
	ID            uint        `gorm:"primaryKey;autoIncrement" json:"id"`
	UUID          uuid.UUID   `gorm:"type:uuid;uniqueIndex;not null" json:"uuid"`
	Purpose       string      `gorm:"type:text;not null;default:''" json:"proposito"`
	IncludeName   string      `gorm:"size:255;not null;default:''" json:"incluirNombre"`
	Anecdotes     string      `gorm:"type:text;not null;default:''" json:"anecdotas"`
	LeadID        *uint       `gorm:"index" json:"leadId,omitempty"`
	LeadPhone     string      `gorm:"size:32;not null;default:''" json:"leadPhone"`
	RequesterName string      `gorm:"size:255;not null;default:''" json:"requesterName"`
	Status        LyricStatus `gorm:"size:32;not null;index" json:"status"`

	Lyric            *string    `gorm:"type:text" json:"letra,omitempty"`
	LyricGeneratedAt *time.Time `json:"letraGeneratedAt,omitempty"`
	SentAt           *time.Time `json:"sentAt,omitempty"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (LyricRequest) TableName() string { return "lyric_requests" }

// BeforeCreate ensures UUID, status and timestamps are set
func (r *LyricRequest) BeforeCreate(tx *gorm.DB) error {
	if r.UUID == uuid.Nil {
		r.UUID = uuid.New()
	}
	if r.Status == "" {
		r.Status = LyricStatusPending
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = utils.UTCNow()
	}
	if r.UpdatedAt.IsZero() {
		r.UpdatedAt = r.CreatedAt
	}
	return nil
}

// LyricRequestFilter represents filter criteria for lyric request queries
type LyricRequestFilter struct {
	ID     *uint        `json:"id,omitempty"`
	UUID   *uuid.UUID   `json:"uuid,omitempty"`
	LeadID *uint        `json:"lead_id,omitempty"`
	Status *LyricStatus `json:"status,omitempty"`
}
