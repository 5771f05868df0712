package repository

import (
	"context"

	"github.com/cantalab/leadflow/models"
	"gorm.io/gorm"
)

// LeadMessageRepositoryImpl implements LeadMessageRepository interface
type LeadMessageRepositoryImpl struct {
	*BaseRepository[models.LeadMessage, models.LeadMessageFilter]
}

// NewLeadMessageRepository creates a new lead message repository
func NewLeadMessageRepository(db *gorm.DB) LeadMessageRepository {
	return &LeadMessageRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LeadMessage, models.LeadMessageFilter](db),
	}
}

// ListByLead returns a lead's history oldest first
func (r *LeadMessageRepositoryImpl) ListByLead(ctx context.Context, leadID uint, limit, offset int) ([]*models.LeadMessage, error) {
	return r.ByFilter(ctx, models.LeadMessageFilter{LeadID: &leadID}, "timestamp ASC, id ASC", limit, offset)
}

func (r *LeadMessageRepositoryImpl) applyFilter(query *gorm.DB, filter models.LeadMessageFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.Sender != nil {
		query = query.Where("sender = ?", *filter.Sender)
	}
	if filter.After != nil {
		query = query.Where("timestamp > ?", *filter.After)
	}
	if filter.Before != nil {
		query = query.Where("timestamp < ?", *filter.Before)
	}
	return query
}

// ByFilter retrieves messages based on filter criteria
func (r *LeadMessageRepositoryImpl) ByFilter(ctx context.Context, filter models.LeadMessageFilter, orderBy string, limit, offset int) ([]*models.LeadMessage, error) {
	query := page(r.applyFilter(r.getDB(ctx).Model(&models.LeadMessage{}), filter), orderBy, "id DESC", limit, offset)

	var rows []*models.LeadMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of messages matching filter
func (r *LeadMessageRepositoryImpl) Count(ctx context.Context, filter models.LeadMessageFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.LeadMessage{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any message matches the filter
func (r *LeadMessageRepositoryImpl) Exists(ctx context.Context, filter models.LeadMessageFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
