package models

import (
	"strings"
	"time"

	"gorm.io/datatypes"
)

// StepType selects how a sequence step is rendered on the channel
type StepType string

const (
	StepTypeText  StepType = "text"
	StepTypeForm  StepType = "form"
	StepTypeAudio StepType = "audio"
	StepTypeImage StepType = "image"
	StepTypeVideo StepType = "video"
)

// stepTypeAliases maps the spellings stored by the CRM frontend
var stepTypeAliases = map[string]StepType{
	"text":       StepTypeText,
	"texto":      StepTypeText,
	"form":       StepTypeForm,
	"formulario": StepTypeForm,
	"audio":      StepTypeAudio,
	"image":      StepTypeImage,
	"imagen":     StepTypeImage,
	"video":      StepTypeVideo,
}

// Canonical resolves aliases; ok is false for unknown types
func (t StepType) Canonical() (StepType, bool) {
	c, ok := stepTypeAliases[strings.ToLower(strings.TrimSpace(string(t)))]
	return c, ok
}

// SequenceStep is one delayed message of a sequence
type SequenceStep struct {
	Type    StepType `json:"type" yaml:"type"`
	Content string   `json:"contenido" yaml:"contenido"`
	// Delay in minutes from the enrollment start time
	Delay float64 `json:"delay" yaml:"delay"`
}

// DelayDuration converts the step delay to a duration
func (s SequenceStep) DelayDuration() time.Duration {
	return time.Duration(s.Delay * float64(time.Minute))
}

// Sequence is a named drip campaign.
// Table: sequences
// Unique by trigger; steps stored as a jsonb array
type Sequence struct {
	ID      uint                              `gorm:"primaryKey" json:"id"`
	Trigger string                            `gorm:"size:128;not null;uniqueIndex:uk_sequences_trigger" json:"trigger"`
	Name    *string                           `gorm:"size:255" json:"name,omitempty"`
	Steps   datatypes.JSONSlice[SequenceStep] `gorm:"type:jsonb;not null" json:"messages"`

	CreatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"updated_at"`
}

func (Sequence) TableName() string {
	return "sequences"
}

// SequenceFilter represents filter criteria for sequence queries
type SequenceFilter struct {
	ID      *uint
	Trigger *string
}

// SequenceEnrollment is a lead's live progress marker through one sequence.
// It is stored inside leads.active_sequences, never in its own table.
type SequenceEnrollment struct {
	Trigger   string    `json:"trigger"`
	StartTime time.Time `json:"startTime"`
	Index     int       `json:"index"`
	Completed bool      `json:"completed,omitempty"`
}

// NewEnrollment starts a lead at the first step of trigger
func NewEnrollment(trigger string, start time.Time) SequenceEnrollment {
	return SequenceEnrollment{Trigger: trigger, StartTime: start.UTC(), Index: 0}
}

// DueAt returns when step would become due for this enrollment
func (e SequenceEnrollment) DueAt(step SequenceStep) time.Time {
	return e.StartTime.Add(step.DelayDuration())
}
