package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/cantalab/leadflow/models"
	"github.com/cantalab/leadflow/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AppConfigRepositoryImpl implements AppConfigRepository interface
type AppConfigRepositoryImpl struct {
	db *gorm.DB
}

// NewAppConfigRepository creates a new app config repository
func NewAppConfigRepository(db *gorm.DB) AppConfigRepository {
	return &AppConfigRepositoryImpl{db: db}
}

func (r *AppConfigRepositoryImpl) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

// Get retrieves the singleton configuration row
func (r *AppConfigRepositoryImpl) Get(ctx context.Context) (*models.AppConfig, error) {
	var row models.AppConfig
	if err := r.conn(ctx).Where("id = ?", models.AppConfigSingletonID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load app config: %w", err)
	}
	return &row, nil
}

// Upsert writes the singleton configuration row
func (r *AppConfigRepositoryImpl) Upsert(ctx context.Context, cfg *models.AppConfig) error {
	cfg.ID = models.AppConfigSingletonID
	cfg.UpdatedAt = utils.UTCNow()
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"auto_save_leads", "default_trigger", "auto_enroll", "updated_at"}),
	}).Create(cfg).Error
	if err != nil {
		return fmt.Errorf("failed to save app config: %w", err)
	}
	return nil
}
