package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/noah-isme/syncboard-api/internal/models"
)

// ActivityLogRepository persists the append-only board action trail. Entries
// are never updated or removed once written.
type ActivityLogRepository interface {
	Create(ctx context.Context, entry *models.ActionLog) error
	Latest(ctx context.Context, limit int) ([]models.ActionLog, error)
}

type activityLogRepository struct {
	db *gorm.DB
}

// NewActivityLogRepository constructs the activity log repository.
func NewActivityLogRepository(db *gorm.DB) ActivityLogRepository {
	return &activityLogRepository{db: db}
}

func (r *activityLogRepository) Create(ctx context.Context, entry *models.ActionLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *activityLogRepository) Latest(ctx context.Context, limit int) ([]models.ActionLog, error) {
	var entries []models.ActionLog
	err := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		return nil, err
	}

	return entries, nil
}
