package repository

import (
	"context"
	"fmt"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceRepositoryImpl implements SequenceRepository interface
type SequenceRepositoryImpl struct {
	*BaseRepository[models.Sequence, models.SequenceFilter]
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *gorm.DB) SequenceRepository {
	return &SequenceRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Sequence, models.SequenceFilter](db),
	}
}

// ByTrigger retrieves the definition for trigger
func (r *SequenceRepositoryImpl) ByTrigger(ctx context.Context, trigger string) (*models.Sequence, error) {
	rows, err := r.ByFilter(ctx, models.SequenceFilter{Trigger: &trigger}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Upsert inserts the sequence or replaces name and steps of the existing trigger
func (r *SequenceRepositoryImpl) Upsert(ctx context.Context, sequence *models.Sequence) error {
	return r.write(ctx, func(db *gorm.DB) error {
		sequence.UpdatedAt = utils.UTCNow()
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trigger"}},
			DoUpdates: clause.AssignmentColumns([]string{"name", "steps", "updated_at"}),
		}).Create(sequence).Error
		if err != nil {
			return fmt.Errorf("failed to upsert sequence %s: %w", sequence.Trigger, err)
		}
		return nil
	})
}

// UpsertAll upserts every sequence in one transaction; either all are written or none
func (r *SequenceRepositoryImpl) UpsertAll(ctx context.Context, sequences []*models.Sequence) error {
	return WithTransaction(ctx, r.DB, func(txCtx context.Context) error {
		for _, seq := range sequences {
			if err := r.Upsert(txCtx, seq); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *SequenceRepositoryImpl) applyFilter(query *gorm.DB, filter models.SequenceFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Trigger != nil {
		query = query.Where("trigger = ?", *filter.Trigger)
	}
	return query
}

// ByFilter retrieves sequences based on filter criteria
func (r *SequenceRepositoryImpl) ByFilter(ctx context.Context, filter models.SequenceFilter, orderBy string, limit, offset int) ([]*models.Sequence, error) {
	query := page(r.applyFilter(r.getDB(ctx).Model(&models.Sequence{}), filter), orderBy, "id DESC", limit, offset)

	var rows []*models.Sequence
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of sequences matching filter
func (r *SequenceRepositoryImpl) Count(ctx context.Context, filter models.SequenceFilter) (int64, error) {
	query := r.applyFilter(r.getDB(ctx).Model(&models.Sequence{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any sequence matches the filter
func (r *SequenceRepositoryImpl) Exists(ctx context.Context, filter models.SequenceFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
