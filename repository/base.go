// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// BaseRepository provides common repository functionality with transaction support
type BaseRepository[T any, F any] struct {
	DB *gorm.DB
}

// NewBaseRepository creates a new base repository instance
func NewBaseRepository[T any, F any](db *gorm.DB) *BaseRepository[T, F] {
	return &BaseRepository[T, F]{
		DB: db,
	}
}

// getDB returns the transaction carried by ctx, or the pool
func (r *BaseRepository[T, F]) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx.WithContext(ctx)
	}
	return r.DB.WithContext(ctx)
}

// write runs fn inside the caller's transaction when there is one,
// otherwise inside a transaction of its own that is committed when fn succeeds
func (r *BaseRepository[T, F]) write(ctx context.Context, fn func(db *gorm.DB) error) error {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return fn(tx.WithContext(ctx))
	}
	return r.DB.WithContext(ctx).Transaction(fn)
}

// ByID retrieves an entity by its ID; a missing row yields nil, nil
func (r *BaseRepository[T, F]) ByID(ctx context.Context, id uint) (*T, error) {
	var entity T
	err := r.getDB(ctx).Last(&entity, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find entity by ID %d: %w", id, err)
	}
	return &entity, nil
}

// Save inserts a new entity
func (r *BaseRepository[T, F]) Save(ctx context.Context, entity *T) error {
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.Create(entity).Error; err != nil {
			return fmt.Errorf("failed to save entity: %w", err)
		}
		return nil
	})
}

// SaveBatch inserts entities in batches of 100 within one transaction
func (r *BaseRepository[T, F]) SaveBatch(ctx context.Context, entities []*T) error {
	if len(entities) == 0 {
		return nil
	}
	return r.write(ctx, func(db *gorm.DB) error {
		if err := db.CreateInBatches(entities, 100).Error; err != nil {
			return fmt.Errorf("failed to save batch entities: %w", err)
		}
		return nil
	})
}

// updateColumns applies a partial update to the row with the given id.
// Values may be plain values or gorm expressions.
func (r *BaseRepository[T, F]) updateColumns(ctx context.Context, id uint, values map[string]any) error {
	var entity T
	res := r.getDB(ctx).Model(&entity).Where("id = ?", id).Updates(values)
	if res.Error != nil {
		return fmt.Errorf("failed to update entity %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to update entity %d: %w", id, gorm.ErrRecordNotFound)
	}
	return nil
}

// page orders the query and applies limit and offset; zero values leave them unbounded
func page(query *gorm.DB, orderBy, defaultOrder string, limit, offset int) *gorm.DB {
	if orderBy == "" {
		orderBy = defaultOrder
	}
	query = query.Order(orderBy)
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	return query
}

// WithTransaction runs fn with a transaction stored in the context.
// Repository calls made with that context join the transaction.
func WithTransaction(ctx context.Context, db *gorm.DB, fn func(context.Context) error) (err error) {
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return fmt.Errorf("failed to begin transaction: %w", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			err = fmt.Errorf("panic in transaction: %v", r)
		}
	}()

	if err := fn(context.WithValue(ctx, TxContextKey, tx)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
