package dto

// SequenceStepDTO is one delayed message; Delay is in minutes
type SequenceStepDTO struct {
	Type    string  `json:"type" yaml:"type" validate:"required"`
	Content string  `json:"contenido" yaml:"contenido"`
	Delay   float64 `json:"delay" yaml:"delay" validate:"gte=0"`
}

// SequenceDTO is a sequence definition as exchanged with the CRM
type SequenceDTO struct {
	ID        uint              `json:"id,omitempty" yaml:"-"`
	Trigger   string            `json:"trigger" yaml:"trigger" validate:"required,max=128"`
	Name      *string           `json:"name,omitempty" yaml:"name,omitempty"`
	Messages  []SequenceStepDTO `json:"messages" yaml:"messages" validate:"dive"`
	UpdatedAt string            `json:"updated_at,omitempty" yaml:"-"`
}

// ListSequencesResponse lists every definition ordered by trigger
type ListSequencesResponse struct {
	Sequences []SequenceDTO `json:"sequences"`
}

// ImportSequencesResponse summarises a YAML import
type ImportSequencesResponse struct {
	Message  string   `json:"message"`
	Imported int      `json:"imported"`
	Triggers []string `json:"triggers"`
}
