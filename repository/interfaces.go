// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/cantalab/leadflow/models"
	"gorm.io/datatypes"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	SaveBatch(ctx context.Context, entities []*T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// LeadRepository defines operations for leads
type LeadRepository interface {
	Repository[models.Lead, models.LeadFilter]
	ByPhone(ctx context.Context, phone string) (*models.Lead, error)
	ByUUID(ctx context.Context, uuid string) (*models.Lead, error)
	// ListWithActiveSequences pages over leads whose active_sequences is not null, ordered by id.
	// A limit of 0 returns every row.
	ListWithActiveSequences(ctx context.Context, afterID uint, limit int) ([]*models.Lead, error)
	UpdateActiveSequences(ctx context.Context, leadID uint, raw datatypes.JSON) error
	// AppendEnrollment adds the enrollment unless an identical one is already present
	AppendEnrollment(ctx context.Context, leadID uint, enrollment models.SequenceEnrollment) error
	// AddLabel adds label unless already present
	AddLabel(ctx context.Context, leadID uint, label string) error
	// RecordActivity sets last_message_at and optionally increments the unread counter atomically
	RecordActivity(ctx context.Context, leadID uint, at time.Time, incrementUnread bool) error
	ResetUnread(ctx context.Context, leadID uint) error
}

// LeadMessageRepository defines operations for conversation history
type LeadMessageRepository interface {
	Repository[models.LeadMessage, models.LeadMessageFilter]
	ListByLead(ctx context.Context, leadID uint, limit, offset int) ([]*models.LeadMessage, error)
}

// SequenceRepository defines operations for sequence definitions
type SequenceRepository interface {
	Repository[models.Sequence, models.SequenceFilter]
	ByTrigger(ctx context.Context, trigger string) (*models.Sequence, error)
	// Upsert creates the sequence or replaces the steps of the one with the same trigger
	Upsert(ctx context.Context, sequence *models.Sequence) error
	UpsertAll(ctx context.Context, sequences []*models.Sequence) error
}

// LyricRequestRepository defines operations for lyric requests
type LyricRequestRepository interface {
	Repository[models.LyricRequest, models.LyricRequestFilter]
	ListByStatus(ctx context.Context, status models.LyricStatus, limit int) ([]*models.LyricRequest, error)
	// MarkGenerated moves a pending request to generated. It reports false when the request was not pending.
	MarkGenerated(ctx context.Context, id uint, lyric string, at time.Time) (bool, error)
	// MarkSent moves a generated request to sent. It reports false when the request was not generated.
	MarkSent(ctx context.Context, id uint, at time.Time) (bool, error)
}

// AppConfigRepository defines operations for the runtime configuration row
type AppConfigRepository interface {
	// Get returns the singleton row, or nil when it has never been written
	Get(ctx context.Context) (*models.AppConfig, error)
	Upsert(ctx context.Context, cfg *models.AppConfig) error
}
