package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// activeSequencesArray normalises a NULL or non-array column to an empty jsonb array
const activeSequencesArray = "CASE WHEN active_sequences IS NULL OR jsonb_typeof(active_sequences) <> 'array' THEN '[]'::jsonb ELSE active_sequences END"

// LeadRepositoryImpl implements LeadRepository interface
type LeadRepositoryImpl struct {
	*BaseRepository[models.Lead, models.LeadFilter]
}

// NewLeadRepository creates a new lead repository
func NewLeadRepository(db *gorm.DB) LeadRepository {
	return &LeadRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Lead, models.LeadFilter](db),
	}
}

// ByPhone retrieves a lead by its canonical phone
func (r *LeadRepositoryImpl) ByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	rows, err := r.ByFilter(ctx, models.LeadFilter{Phone: &phone}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ByUUID retrieves a lead by UUID
func (r *LeadRepositoryImpl) ByUUID(ctx context.Context, uuidStr string) (*models.Lead, error) {
	parsed, err := utils.ParseUUID(uuidStr)
	if err != nil {
		return nil, err
	}
	rows, err := r.ByFilter(ctx, models.LeadFilter{UUID: &parsed}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// ListWithActiveSequences pages over leads with a non-null enrollment collection
func (r *LeadRepositoryImpl) ListWithActiveSequences(ctx context.Context, afterID uint, limit int) ([]*models.Lead, error) {
	active := true
	query := r.applyFilter(r.getDB(ctx).Model(&models.Lead{}), models.LeadFilter{HasActiveSequences: &active})
	if afterID > 0 {
		query = query.Where("id > ?", afterID)
	}
	query = query.Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []*models.Lead
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list leads with active sequences: %w", err)
	}
	return rows, nil
}

// UpdateActiveSequences overwrites the enrollment collection of a lead
func (r *LeadRepositoryImpl) UpdateActiveSequences(ctx context.Context, leadID uint, raw datatypes.JSON) error {
	return r.updateColumns(ctx, leadID, map[string]any{
		"active_sequences": raw,
		"updated_at":       utils.UTCNow(),
	})
}

// AppendEnrollment unions one enrollment into the collection in a single statement
func (r *LeadRepositoryImpl) AppendEnrollment(ctx context.Context, leadID uint, enrollment models.SequenceEnrollment) error {
	raw, err := json.Marshal([]models.SequenceEnrollment{enrollment})
	if err != nil {
		return fmt.Errorf("failed to encode enrollment: %w", err)
	}
	doc := string(raw)
	return r.updateColumns(ctx, leadID, map[string]any{
		"active_sequences": gorm.Expr(
			"CASE WHEN ("+activeSequencesArray+") @> ?::jsonb THEN ("+activeSequencesArray+") ELSE ("+activeSequencesArray+") || ?::jsonb END",
			doc, doc,
		),
		"updated_at": utils.UTCNow(),
	})
}

// AddLabel appends label to the lead unless already present
func (r *LeadRepositoryImpl) AddLabel(ctx context.Context, leadID uint, label string) error {
	return r.updateColumns(ctx, leadID, map[string]any{
		"labels":     gorm.Expr("CASE WHEN ? = ANY(labels) THEN labels ELSE array_append(labels, ?) END", label, label),
		"updated_at": utils.UTCNow(),
	})
}

// RecordActivity stamps the last message time and bumps the unread counter when asked
func (r *LeadRepositoryImpl) RecordActivity(ctx context.Context, leadID uint, at time.Time, incrementUnread bool) error {
	values := map[string]any{
		"last_message_at": at.UTC(),
		"updated_at":      utils.UTCNow(),
	}
	if incrementUnread {
		values["unread_count"] = gorm.Expr("unread_count + 1")
	}
	return r.updateColumns(ctx, leadID, values)
}

// ResetUnread marks every message of the lead as read
func (r *LeadRepositoryImpl) ResetUnread(ctx context.Context, leadID uint) error {
	return r.updateColumns(ctx, leadID, map[string]any{
		"unread_count": 0,
		"updated_at":   utils.UTCNow(),
	})
}

// applyFilter applies filter criteria to a GORM query
func (r *LeadRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.Phone != nil {
		query = query.Where("phone = ?", *filter.Phone)
	}
	if filter.State != nil {
		query = query.Where("state = ?", *filter.State)
	}
	if filter.Label != nil {
		query = query.Where("? = ANY(labels)", *filter.Label)
	}
	if filter.HasActiveSequences != nil {
		if *filter.HasActiveSequences {
			query = query.Where("active_sequences IS NOT NULL AND active_sequences <> 'null'::jsonb")
		} else {
			query = query.Where("active_sequences IS NULL OR active_sequences = 'null'::jsonb")
		}
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves leads based on filter criteria
func (r *LeadRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadFilter, orderBy string, limit, offset int) ([]*models.Lead, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Lead{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.Lead
	if err := query.Find(&rows).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find leads by filter: %w", err)
	}
	return rows, nil
}

// Count returns number of leads matching filter
func (r *LeadRepositoryImpl) Count(ctx context.Context, filter models.LeadFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Lead{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any lead matches the filter
func (r *LeadRepositoryImpl) Exists(ctx context.Context, filter models.LeadFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
