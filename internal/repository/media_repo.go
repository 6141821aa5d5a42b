package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"mediastore/internal/domain"
)

var ErrMediaNotFound = errors.New("media not found")

type MediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

func (r *MediaRepository) DB() *gorm.DB { return r.db }

func (r *MediaRepository) Create(ctx context.Context, m *domain.Media) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MediaRepository) GetByID(ctx context.Context, id int64) (*domain.Media, error) {
	var m domain.Media
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted = ?", id, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepository) GetByStoredFilename(ctx context.Context, storedFilename string) (*domain.Media, error) {
	var m domain.Media
	err := r.db.WithContext(ctx).
		Where("stored_filename = ? AND deleted = ?", storedFilename, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *MediaRepository) GetByExternalMediaID(ctx context.Context, externalID string) (*domain.Media, error) {
	var m domain.Media
	err := r.db.WithContext(ctx).
		Where("external_media_id = ? AND deleted = ?", externalID, false).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMediaNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// ListByUser returns one page of the user's media, newest first, plus the
// total row count for the same filter.
func (r *MediaRepository) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]domain.Media, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.Media{}).
		Where("user_id = ? AND deleted = ?", userID, false)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Media
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	return items, total, err
}

func (r *MediaRepository) ListByUserAndType(ctx context.Context, userID int64, category domain.MediaCategory, limit, offset int) ([]domain.Media, int64, error) {
	q := r.db.WithContext(ctx).
		Model(&domain.Media{}).
		Where("user_id = ? AND media_type = ? AND deleted = ?", userID, category, false)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var items []domain.Media
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&items).Error
	return items, total, err
}

// SoftDelete flips the deleted flag and stamps who removed the record.
// The row itself stays in place until an explicit purge.
func (r *MediaRepository) SoftDelete(ctx context.Context, id, deletedBy int64) error {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.Media{}).
		Where("id = ? AND deleted = ?", id, false).
		Updates(map[string]any{
			"deleted":    true,
			"deleted_at": &now,
			"deleted_by": deletedBy,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

// HardDelete removes the row. Only the purge path calls this.
func (r *MediaRepository) HardDelete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Media{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

func (r *MediaRepository) ExistsByStoredFilename(ctx context.Context, storedFilename string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Media{}).
		Where("stored_filename = ? AND deleted = ?", storedFilename, false).
		Count(&count).Error
	return count > 0, err
}

func (r *MediaRepository) CountByUser(ctx context.Context, userID int64) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Media{}).
		Where("user_id = ? AND deleted = ?", userID, false).
		Count(&count).Error
	return count, err
}

func (r *MediaRepository) CountByUserAndType(ctx context.Context, userID int64, category domain.MediaCategory) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&domain.Media{}).
		Where("user_id = ? AND media_type = ? AND deleted = ?", userID, category, false).
		Count(&count).Error
	return count, err
}
