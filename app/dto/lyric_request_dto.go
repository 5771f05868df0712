package dto

// CreateLyricRequestRequest captures what the song should be about.
// LeadID is optional; when empty the lead is looked up by phone.
type CreateLyricRequestRequest struct {
	Purpose       string `json:"proposito" validate:"required,max=2000"`
	IncludeName   string `json:"incluirNombre" validate:"max=255"`
	Anecdotes     string `json:"anecdotas" validate:"max=4000"`
	LeadID        *uint  `json:"leadId,omitempty"`
	LeadPhone     string `json:"leadPhone" validate:"required,max=32"`
	RequesterName string `json:"requesterName" validate:"max=255"`
}

// LyricRequestDTO is a lyric request with its pipeline progress
type LyricRequestDTO struct {
	ID               uint    `json:"id"`
	UUID             string  `json:"uuid"`
	Purpose          string  `json:"proposito"`
	IncludeName      string  `json:"incluirNombre"`
	Anecdotes        string  `json:"anecdotas"`
	LeadID           *uint   `json:"leadId,omitempty"`
	LeadPhone        string  `json:"leadPhone"`
	RequesterName    string  `json:"requesterName"`
	Status           string  `json:"status"`
	Lyric            *string `json:"letra,omitempty"`
	LyricGeneratedAt *string `json:"letraGeneratedAt,omitempty"`
	SentAt           *string `json:"sentAt,omitempty"`
	CreatedAt        string  `json:"created_at"`
}

// ListLyricRequestsRequest filters lyric requests by status
type ListLyricRequestsRequest struct {
	Status *string `json:"status,omitempty"`
	PageRequest
}

// ListLyricRequestsResponse is one page of lyric requests, newest first
type ListLyricRequestsResponse struct {
	Requests []LyricRequestDTO `json:"requests"`
	Total    int64             `json:"total"`
}

// AppConfigDTO exposes the runtime switches
type AppConfigDTO struct {
	AutoSaveLeads  bool   `json:"autoSaveLeads"`
	DefaultTrigger string `json:"defaultTrigger" validate:"max=128"`
	AutoEnroll     bool   `json:"autoEnroll"`
	UpdatedAt      string `json:"updated_at,omitempty"`
}
