package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/utils"
	"gorm.io/gorm"
)

// LyricRequestRepositoryImpl implements LyricRequestRepository interface
type LyricRequestRepositoryImpl struct {
	*BaseRepository[models.LyricRequest, models.LyricRequestFilter]
}

// NewLyricRequestRepository creates a new lyric request repository
func NewLyricRequestRepository(db *gorm.DB) LyricRequestRepository {
	return &LyricRequestRepositoryImpl{
		BaseRepository: NewBaseRepository[models.LyricRequest, models.LyricRequestFilter](db),
	}
}

// ListByStatus returns requests in the given state, oldest first
func (r *LyricRequestRepositoryImpl) ListByStatus(ctx context.Context, status models.LyricStatus, limit int) ([]*models.LyricRequest, error) {
	return r.ByFilter(ctx, models.LyricRequestFilter{Status: &status}, "id ASC", limit, 0)
}

// MarkGenerated stores the lyric and moves the request forward when it is still pending
func (r *LyricRequestRepositoryImpl) MarkGenerated(ctx context.Context, id uint, lyric string, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.LyricStatusPending, map[string]any{
		"status":             models.LyricStatusGenerated,
		"lyric":              lyric,
		"lyric_generated_at": at.UTC(),
		"updated_at":         utils.UTCNow(),
	})
}

// MarkSent closes a generated request
func (r *LyricRequestRepositoryImpl) MarkSent(ctx context.Context, id uint, at time.Time) (bool, error) {
	return r.transition(ctx, id, models.LyricStatusGenerated, map[string]any{
		"status":     models.LyricStatusSent,
		"sent_at":    at.UTC(),
		"updated_at": utils.UTCNow(),
	})
}

// transition updates the row only while it is still in from
func (r *LyricRequestRepositoryImpl) transition(ctx context.Context, id uint, from models.LyricStatus, values map[string]any) (bool, error) {
	res := r.getDB(ctx).Model(&models.LyricRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(values)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update lyric request %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *LyricRequestRepositoryImpl) applyFilter(query *gorm.DB, filter models.LyricRequestFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.LeadID != nil {
		query = query.Where("lead_id = ?", *filter.LeadID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// ByFilter retrieves lyric requests based on filter criteria
func (r *LyricRequestRepositoryImpl) ByFilter(ctx context.Context, filter models.LyricRequestFilter, orderBy string, limit, offset int) ([]*models.LyricRequest, error) {
	query := page(r.applyFilter(r.getDB(ctx).Model(&models.LyricRequest{}), filter), orderBy, "id DESC", limit, offset)

	var rows []*models.LyricRequest
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of lyric requests matching filter
func (r *LyricRequestRepositoryImpl) Count(ctx context.Context, filter models.LyricRequestFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.LyricRequest{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any lyric request matches the filter
func (r *LyricRequestRepositoryImpl) Exists(ctx context.Context, filter models.LyricRequestFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
